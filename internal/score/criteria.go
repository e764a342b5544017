// Package score implements the rule-based suitability scoring engine.
// Evaluation is a pure function over listing fields and a configured rule
// set, so identical inputs always produce identical results regardless of
// traversal order.
package score

import (
	"strconv"
	"strings"
)

// Canonical target fields a criterion can match against.
const (
	FieldTitle       = "title"
	FieldCompany     = "company"
	FieldLocation    = "location"
	FieldURL         = "url"
	FieldDescription = "description"
)

// Match methods. Unknown methods degrade to contains.
const (
	MethodContains   = "contains"
	MethodEquals     = "equals"
	MethodStartsWith = "startswith"
	MethodEndsWith   = "endswith"
	MethodRegex      = "regex"
	MethodWord       = "word"
)

// Item effect tags after normalization.
const (
	EffectIncrease = "increase"
	EffectDecrease = "decrease"
	EffectExclude  = "exclude"
	// EffectMinimum registers the criterion's minimum value as a
	// post-pass upper clamp. EffectMaximum registers the maximum value
	// as a post-pass lower clamp. The inverted polarity is deliberate and
	// matches the stored rule data; see the ceiling/floor handling in
	// Evaluate before changing it.
	EffectMinimum = "minimum"
	EffectMaximum = "maximum"
)

// Item is one literal trigger value of a criterion together with its effect
// on the score. Effect may also be a bare numeric delta such as "+2" or
// "-1.5".
type Item struct {
	Value  string
	Effect string
}

// Criterion is a configured matching rule. Field is expected to be canonical;
// use ResolveField when loading raw rule data. Nil deltas fall back to +1/-1,
// nil bounds disable the corresponding clamp effect.
type Criterion struct {
	ID       int64
	Field    string
	Method   string
	Increase *float64
	Decrease *float64
	Min      *float64
	Max      *float64
	Items    []Item
}

// Fields holds the listing values a criterion can target.
type Fields struct {
	Title       string
	Company     string
	Location    string
	URL         string
	Description string
}

// Value resolves a canonical field name to its listing value. Unknown names
// yield the empty string and therefore never match.
func (f Fields) Value(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FieldTitle:
		return f.Title
	case FieldCompany, "employer":
		return f.Company
	case FieldLocation, "suburb":
		return f.Location
	case FieldURL, "link":
		return f.URL
	case FieldDescription:
		return f.Description
	default:
		return ""
	}
}

var fieldAliases = map[string]string{
	"job_title": FieldTitle,
	"title":     FieldTitle,
	"company":   FieldCompany,
	"employer":  FieldCompany,
	"location":  FieldLocation,
	"suburb":    FieldLocation,
	"url":       FieldURL,
	"link":      FieldURL,
}

// ResolveField normalizes a criterion target to a canonical field name.
// It accepts explicit aliases and the CSS-like selector strings seen in
// imported rule data (e.g. `a[data-automation=jobtitle]`). Selector-like
// strings that cannot be classified default to the title field, which is the
// only universally present card value.
func ResolveField(fieldName, tag string) string {
	raw := strings.TrimSpace(tag)
	if raw == "" {
		raw = strings.TrimSpace(fieldName)
	}
	low := strings.ToLower(raw)

	if canonical, ok := fieldAliases[low]; ok {
		return canonical
	}

	switch {
	case strings.Contains(low, "jobtitle"), strings.Contains(low, "job-title"), strings.Contains(low, "job_title"):
		return FieldTitle
	case strings.Contains(low, "jobcompany"), strings.Contains(low, "company"):
		return FieldCompany
	case strings.Contains(low, "joblocation"), strings.Contains(low, "location"), strings.Contains(low, "suburb"):
		return FieldLocation
	case strings.Contains(low, "description"):
		return FieldDescription
	}

	if strings.ContainsAny(low, "[]=#. ") {
		return FieldTitle
	}
	return low
}

// NormalizeMethod folds method synonyms onto the supported set. Anything
// unrecognized degrades to contains.
func NormalizeMethod(method string) string {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case MethodEquals, "exact":
		return MethodEquals
	case MethodStartsWith:
		return MethodStartsWith
	case MethodEndsWith:
		return MethodEndsWith
	case MethodRegex, "re":
		return MethodRegex
	case MethodWord, "wholeword":
		return MethodWord
	default:
		return MethodContains
	}
}

// normalizeEffect folds effect synonyms onto the canonical tags. A bare
// numeric effect is returned as (0-value tag, delta, true).
func normalizeEffect(effect string) (tag string, delta float64, numeric bool) {
	cleaned := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(effect)), "_", "")
	switch cleaned {
	case "minimumscore", "minscore", "minimum", "min":
		return EffectMinimum, 0, false
	case "maximumscore", "maxscore", "maximum", "max":
		return EffectMaximum, 0, false
	case "increasescore", "increase", "inc", "positive", "include":
		return EffectIncrease, 0, false
	case "decreasescore", "decrease", "dec", "negative":
		return EffectDecrease, 0, false
	case "exclude", "ban", "block":
		return EffectExclude, 0, false
	}
	if d, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return "", d, true
	}
	return cleaned, 0, false
}
