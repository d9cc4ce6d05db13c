package jats

import (
	"strings"

	"github.com/beevik/etree"
)

const defaultDatePart = "01"

// Publication date categories, highest priority first.
var publishedPriority = []string{"epub", "ppub", "pmc-release"}

var seasonMonths = map[string]string{
	"spring": "03",
	"summer": "06",
	"fall":   "09",
	"winter": "12",
}

// NormalizeDate reduces a JATS date element (pub-date or date) to YYYY-MM-DD.
//
// The year is mandatory. A month element always wins over a season, even
// when it is not numeric, in which case the month falls back to "01". Day
// and month are zero padded but never range checked.
func NormalizeDate(date *etree.Element) *string {
	if date == nil {
		return nil
	}
	year := ScalarText(firstDescendant(date, "year"))
	if year == nil {
		return nil
	}

	month := defaultDatePart
	if raw := ScalarText(firstDescendant(date, "month")); raw != nil {
		if isDigits(*raw) {
			month = zeroPad(*raw)
		}
	} else if raw := ScalarText(firstDescendant(date, "season")); raw != nil {
		if m, ok := seasonMonths[strings.ToLower(*raw)]; ok {
			month = m
		}
	}

	day := defaultDatePart
	if raw := ScalarText(firstDescendant(date, "day")); raw != nil && isDigits(*raw) {
		day = zeroPad(*raw)
	}

	s := *year + "-" + month + "-" + day
	return &s
}

// ResolveDates extracts the published, received and accepted dates.
func ResolveDates(article *etree.Element) ArticleDates {
	return ArticleDates{
		DatePublished: resolvePublished(article),
		DateReceived:  resolveHistory(article, "received"),
		DateAccepted:  resolveHistory(article, "accepted"),
	}
}

// resolvePublished walks the categories in priority order. Only the first
// pub-date of a category is considered; when it carries no year the next
// category is tried.
func resolvePublished(article *etree.Element) *string {
	pubDates := descendants(article, "pub-date")
	for _, category := range publishedPriority {
		for _, el := range pubDates {
			if discriminator(el, "pub-type") != category {
				continue
			}
			if d := NormalizeDate(el); d != nil {
				return d
			}
			break
		}
	}
	return nil
}

func resolveHistory(article *etree.Element, dateType string) *string {
	for _, el := range descendantsIn(article, "history", "date") {
		if discriminator(el, "date-type") == dateType {
			return NormalizeDate(el)
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func zeroPad(s string) string {
	if len(s) >= 2 {
		return s
	}
	return "0" + s
}
