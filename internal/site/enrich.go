package site

import (
	"regexp"
	"strings"

	"github.com/mwhitfield/jobhunter/internal/hunt"
)

// Detail-page selectors tried in order for the job description body.
var descriptionSelectors = []string{
	`div[data-automation="jobAdDetails"]`,
	`[data-automation="jobDescription"]`,
	`main`,
}

var payPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$\d{2,3}(?:,\d{3})?(?:\.\d{2})?\s*(?:per hour|/hr|hourly|p/h)`),
	regexp.MustCompile(`(?i)\$\d{2,3}(?:,\d{3})?(?:\.\d{2})?\s*(?:per week|weekly)`),
	regexp.MustCompile(`(?i)\$\d{2,3}(?:,\d{3})?(?:\.\d{2})?\s*(?:per year|annual|annum|p\.a\.)`),
}

var closingDatePattern = regexp.MustCompile(
	`(?i)(close[s]?|apply by)\s+(?:on\s+)?([0-9]{1,2}\s+\w+\s+\d{4}|\d{1,2}/\d{1,2}/\d{4})`)

// enrichFrom pulls best-effort detail fields out of a listing page. Fields
// that cannot be found stay empty; enrichment never fails a listing.
func enrichFrom(p *Page) hunt.Enrichment {
	var desc string
	for _, sel := range descriptionSelectors {
		if desc = p.Text(sel); desc != "" {
			break
		}
	}
	if desc == "" {
		desc = strings.TrimSpace(p.Select("body").Text())
	}

	return hunt.Enrichment{
		Description: desc,
		PayText:     extractPay(desc),
		ClosingDate: extractClosingDate(desc),
	}
}

// extractPay returns the first pay phrase found, preferring hourly over
// weekly over annual rates.
func extractPay(desc string) string {
	for _, pat := range payPatterns {
		if m := pat.FindString(desc); m != "" {
			return m
		}
	}
	return ""
}

func extractClosingDate(desc string) string {
	m := closingDatePattern.FindStringSubmatch(desc)
	if m == nil {
		return ""
	}
	return m[2]
}
