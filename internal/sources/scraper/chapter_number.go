package scraper

import (
	"regexp"
	"strconv"
)

var chapterNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:chapter|ch\.?|episode|ep\.?)\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`^(\d+(?:\.\d+)?)(?:\s*[-:.]|\s+)`),
	regexp.MustCompile(`第\s*(\d+(?:\.\d+)?)\s*[章话]`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*화`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*話`),
}

// ChapterNumber extracts a chapter ordinal from a title such as
// "Chapter 12.5" or "第12章". Returns nil when none is found.
func ChapterNumber(title string) *float64 {
	for _, p := range chapterNumberPatterns {
		m := p.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &n
		}
	}
	return nil
}
