package score

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Result is the outcome of evaluating one listing against a rule set.
type Result struct {
	Score    int
	Excluded bool
	Reasons  []string
}

// QueueForEnrichment reports whether a listing should enter the deep pass.
func (r Result) QueueForEnrichment(threshold int) bool {
	return !r.Excluded && r.Score >= threshold
}

// Evaluate applies the criteria to the listing fields starting from base.
//
// Each matching item applies its effect to the running score: numeric deltas
// add their exact value, increase/decrease add the criterion's configured
// deltas (+1/-1 when unset), exclude flips the excluded flag without touching
// the score. Minimum-bound effects register the criterion's Min value as a
// candidate upper clamp and maximum-bound effects register the Max value as a
// candidate lower clamp; after all criteria run, the tightest ceiling
// (smallest) is applied, then the tightest floor (largest), and the result is
// rounded to the nearest integer. The ceiling/floor inversion mirrors the
// stored rule data and must not be "corrected".
func Evaluate(fields Fields, criteria []Criterion, base float64) Result {
	running := base
	excluded := false
	var reasons []string

	var ceiling, floor *float64

	for _, c := range criteria {
		method := NormalizeMethod(c.Method)
		haystack := fields.Value(c.Field)

		for _, item := range c.Items {
			if item.Value == "" {
				continue
			}
			if !matches(method, haystack, item.Value) {
				continue
			}

			tag, delta, numeric := normalizeEffect(item.Effect)
			switch {
			case numeric:
				running += delta
				reasons = append(reasons, fmt.Sprintf("%s:%s:%+g", c.Field, item.Value, delta))
			case tag == EffectIncrease:
				d := 1.0
				if c.Increase != nil {
					d = *c.Increase
				}
				running += d
				reasons = append(reasons, fmt.Sprintf("%s:%s:inc%g", c.Field, item.Value, d))
			case tag == EffectDecrease:
				d := -1.0
				if c.Decrease != nil {
					d = *c.Decrease
				}
				running += d
				reasons = append(reasons, fmt.Sprintf("%s:%s:dec%g", c.Field, item.Value, d))
			case tag == EffectExclude:
				excluded = true
				reasons = append(reasons, fmt.Sprintf("%s:%s:EXCLUDE", c.Field, item.Value))
			case tag == EffectMinimum:
				if c.Min != nil {
					if ceiling == nil || *c.Min < *ceiling {
						v := *c.Min
						ceiling = &v
					}
					reasons = append(reasons, fmt.Sprintf("%s:%s:min_cap->%g", c.Field, item.Value, *c.Min))
				}
			case tag == EffectMaximum:
				if c.Max != nil {
					if floor == nil || *c.Max > *floor {
						v := *c.Max
						floor = &v
					}
					reasons = append(reasons, fmt.Sprintf("%s:%s:max_floor->%g", c.Field, item.Value, *c.Max))
				}
			default:
				reasons = append(reasons, fmt.Sprintf("%s:%s:noop(%s)", c.Field, item.Value, tag))
			}
		}
	}

	// Ceiling before floor, both post-pass.
	if ceiling != nil && running > *ceiling {
		running = *ceiling
	}
	if floor != nil && running < *floor {
		running = *floor
	}

	return Result{
		Score:    int(math.Round(running)),
		Excluded: excluded,
		Reasons:  reasons,
	}
}

func matches(method, haystack, needle string) bool {
	h := strings.ToLower(haystack)
	n := strings.ToLower(needle)

	switch method {
	case MethodEquals:
		return h == n
	case MethodStartsWith:
		return strings.HasPrefix(h, n)
	case MethodEndsWith:
		return strings.HasSuffix(h, n)
	case MethodRegex:
		re, err := regexp.Compile("(?i)" + needle)
		if err != nil {
			return strings.Contains(h, n)
		}
		return re.MatchString(haystack)
	case MethodWord:
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(n) + `\b`)
		if err != nil {
			return strings.Contains(h, n)
		}
		return re.MatchString(h)
	default:
		return strings.Contains(h, n)
	}
}
