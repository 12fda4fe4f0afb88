package jobs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespace = regexp.MustCompile(`\s+`)

// StripHTML extracts plain text from upstream HTML descriptions, collapses
// whitespace, and caps the result at DescriptionLimit. Adapters must never
// hand HTML downstream.
func StripHTML(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}

	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		text = doc.Text()
	}

	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	return Truncate(text, DescriptionLimit)
}

// Truncate cuts s at limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

var salaryNumber = regexp.MustCompile(`\d+`)

// ParseSalaryRange extracts min/max annual figures from a free-text salary
// string like "$40,000 - $60,000". Numbers at or below 1000 are ignored as
// noise (hourly rates, list markers).
func ParseSalaryRange(s string) (*int, *int) {
	if s == "" {
		return nil, nil
	}

	var nums []int
	for _, raw := range salaryNumber.FindAllString(strings.ReplaceAll(s, ",", ""), -1) {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 1000 {
			continue
		}
		nums = append(nums, n)
	}

	switch {
	case len(nums) >= 2:
		lo, hi := nums[0], nums[0]
		for _, n := range nums[1:] {
			if n < lo {
				lo = n
			}
			if n > hi {
				hi = n
			}
		}
		return &lo, &hi
	case len(nums) == 1:
		return &nums[0], &nums[0]
	default:
		return nil, nil
	}
}

// GuessWorkType infers a work type from title and location text. The AI
// scorer may overwrite the guess later using the full description.
func GuessWorkType(title, location string) string {
	t := strings.ToLower(title)
	loc := strings.ToLower(location)

	switch {
	case strings.Contains(t, "remote") || strings.Contains(loc, "remote") || loc == "":
		return WorkTypeRemote
	case strings.Contains(t, "hybrid") || strings.Contains(loc, "hybrid"):
		return WorkTypeHybrid
	default:
		return WorkTypeOnsite
	}
}
