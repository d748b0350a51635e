// Package format renders dates for display and estimates reading time.
// Dates are pt-BR and use the location of the time they are given.
package format

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDate is returned for nil or unparseable timestamps.
var ErrInvalidDate = errors.New("invalid date")

// DefaultWordsPerMinute is the reading speed used when none is given.
const DefaultWordsPerMinute = 200

// cmsLayout is the timestamp layout of first_publication_date.
const cmsLayout = "2006-01-02T15:04:05-0700"

var shortMonths = [...]string{
	"jan", "fev", "mar", "abr", "mai", "jun",
	"jul", "ago", "set", "out", "nov", "dez",
}

var longMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// FormatDate renders t as "15 mar 2021".
func FormatDate(t *time.Time) (string, error) {
	if t == nil || t.IsZero() {
		return "", ErrInvalidDate
	}
	return fmt.Sprintf("%02d %s %d", t.Day(), shortMonths[t.Month()-1], t.Year()), nil
}

// FormatLongDate renders t as "15 de março de 2021".
func FormatLongDate(t *time.Time) (string, error) {
	if t == nil || t.IsZero() {
		return "", ErrInvalidDate
	}
	return fmt.Sprintf("%02d de %s de %d", t.Day(), longMonths[t.Month()-1], t.Year()), nil
}

// ParseTimestamp parses a CMS publication timestamp. Both the CMS layout
// (2021-03-15T19:25:28+0000) and RFC 3339 are accepted.
func ParseTimestamp(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidDate
	}
	for _, layout := range []string{cmsLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// EstimateReadingMinutes counts whitespace-delimited words in the title and
// every body text and divides by wordsPerMinute, rounding up. The result is
// never below one minute.
func EstimateReadingMinutes(title string, body []string, wordsPerMinute int) int {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}

	words := len(strings.Fields(title))
	for _, text := range body {
		words += len(strings.Fields(text))
	}

	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
