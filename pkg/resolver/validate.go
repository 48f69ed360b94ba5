package resolver

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

// Validate coerces a caller-supplied value against the variable's
// declaration. It never returns an error: out-of-range numbers are clamped,
// over-long strings truncated, and anything unusable is rejected so the
// caller can fall back to the declared default. The second return is false
// only when the value must be discarded entirely.
func Validate(v models.Variable, raw any) (string, bool) {
	switch v.Type {
	case models.TypeNumber:
		return validateNumber(v, raw)
	case models.TypeBoolean:
		return validateBool(raw)
	case models.TypeArray, models.TypeObject:
		return stringify(raw, v.Source), true
	default:
		return validateString(v, raw)
	}
}

func validateNumber(v models.Variable, raw any) (string, bool) {
	var n float64
	switch val := raw.(type) {
	case float64:
		n = val
	case float32:
		n = float64(val)
	case int:
		n = float64(val)
	case int64:
		n = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return "", false
		}
		n = parsed
	default:
		return "", false
	}

	if v.Validation != nil {
		if v.Validation.Min != nil && n < *v.Validation.Min {
			n = *v.Validation.Min
		}
		if v.Validation.Max != nil && n > *v.Validation.Max {
			n = *v.Validation.Max
		}
	}
	return trimFloat(n), true
}

func validateBool(raw any) (string, bool) {
	switch val := raw.(type) {
	case bool:
		return strconv.FormatBool(val), true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	default:
		return "", false
	}
}

func validateString(v models.Variable, raw any) (string, bool) {
	s, ok := raw.(string)
	if !ok {
		s = stringify(raw, v.Source)
	}

	if v.Validation == nil {
		return s, true
	}

	if len(v.Validation.Options) > 0 {
		for _, opt := range v.Validation.Options {
			if s == opt {
				return s, true
			}
		}
		return "", false
	}

	if v.Validation.Pattern != "" {
		re, err := regexp.Compile(v.Validation.Pattern)
		if err != nil || !re.MatchString(s) {
			return "", false
		}
	}
	if v.Validation.Min != nil && len(s) < int(*v.Validation.Min) {
		return "", false
	}
	if v.Validation.Max != nil && len(s) > int(*v.Validation.Max) {
		s = truncate(s, int(*v.Validation.Max))
	}
	return s, true
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// trimFloat formats a float without a trailing ".0" for whole numbers.
func trimFloat(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
