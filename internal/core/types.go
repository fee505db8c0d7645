package core

import (
	"strings"
	"time"
)

// DateLayout is the ISO date format used across the pipeline.
// Dates are kept as strings so lexicographic order equals calendar order.
const DateLayout = "2006-01-02"

// Bar represents one daily k-line row for a single stock.
type Bar struct {
	Code     string
	Date     string // "2006-01-02"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Amount   float64
	Turnover float64 // percent; NaN when the source has none
	PctChg   float64 // day-over-day change percent; NaN when unknown
}

// IsValid checks if the bar has required fields
func (b Bar) IsValid() bool {
	return b.Code != "" && b.Date != "" && b.Close > 0
}

// Stock identifies one listed instrument.
type Stock struct {
	Code string
	Name string
}

// Board represents an A-share listing board group.
type Board string

const (
	BoardAll  Board = "all"
	BoardMain Board = "main" // SSE/SZSE main boards + ChiNext
	BoardStar Board = "star" // STAR Market
)

// Main-board code prefixes. Beijing exchange codes (4xx/8xx) are
// excluded upstream by the collectors.
var mainBoardPrefixes = []string{
	"000", "001", "002", "003",
	"600", "601", "603", "605",
	"300", "301",
}

// MatchesBoard reports whether a stock code belongs to the given board.
func MatchesBoard(code string, board Board) bool {
	switch board {
	case BoardMain:
		for _, p := range mainBoardPrefixes {
			if strings.HasPrefix(code, p) {
				return true
			}
		}
		return false
	case BoardStar:
		return strings.HasPrefix(code, "688")
	default:
		return true
	}
}

// ParseDate parses an ISO date string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders a time as an ISO date string.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween returns the calendar days from a to b (both ISO dates).
// Unparseable input yields 0.
func DaysBetween(a, b string) int {
	ta, err := ParseDate(a)
	if err != nil {
		return 0
	}
	tb, err := ParseDate(b)
	if err != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}
