package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDayPattern  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	numericMDPattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
)

var monthByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// extractEventDate finds the first date mentioned in a checklist line. Summary
// lines rarely carry a year, so a bare month/day lands in the current year
// unless that puts it far in the past, in which case it rolls forward. Returns
// nil when no date is recognized.
func extractEventDate(text string, now time.Time) *time.Time {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return validDate(year, time.Month(month), day, now.Location())
	}

	if m := monthDayPattern.FindStringSubmatch(text); m != nil {
		month, ok := monthByPrefix[strings.ToLower(m[1])]
		if ok {
			day, _ := strconv.Atoi(m[2])
			return inferYear(month, day, now)
		}
	}

	if m := numericMDPattern.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if m[3] != "" {
			year, _ := strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
			return validDate(year, time.Month(month), day, now.Location())
		}
		return inferYear(time.Month(month), day, now)
	}

	return nil
}

// inferYear picks the year for a month/day with none given: current year,
// rolled forward when the result is more than 60 days behind today.
func inferYear(month time.Month, day int, now time.Time) *time.Time {
	date := validDate(now.Year(), month, day, now.Location())
	if date == nil {
		return nil
	}
	if date.Before(now.AddDate(0, 0, -60)) {
		return validDate(now.Year()+1, month, day, now.Location())
	}
	return date
}

// validDate rejects day/month combinations that time.Date would silently
// normalize, like Feb 30.
func validDate(year int, month time.Month, day int, loc *time.Location) *time.Time {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return nil
	}
	date := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if date.Month() != month || date.Day() != day {
		return nil
	}
	return &date
}
