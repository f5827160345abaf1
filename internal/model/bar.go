package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// DateLayout is the wire and storage format of trading dates.
const DateLayout = "2006-01-02"

// Bar is one daily OHLCV row for a single symbol.
// Volume is null for index series.
type Bar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume null.Int  `json:"volume"`
}

// Security is a row of the security master.
type Security struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"security_name"`
	IsActive bool   `json:"is_active"`
}

// Day truncates t to a calendar date at UTC midnight, keeping the
// wall-clock date of t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a Day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// FormatDate renders a Day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
