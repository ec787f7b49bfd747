package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/shopspring/decimal"
)

const minutesPerDay = 24 * 60

// ParseClock parses "HH:MM" or "HH:MM:SS" into minutes past midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// WorkedHours is (end - start) - break in hours, rounded to two places. A
// negative span is an overnight shift and gains 24 hours; the result is never
// below zero.
func WorkedHours(start, end string, breakMinutes int) (decimal.Decimal, error) {
	from, err := ParseClock(start)
	if err != nil {
		return decimal.Zero, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return decimal.Zero, err
	}

	if breakMinutes < 0 {
		breakMinutes = 0
	}
	span := to - from
	if span < 0 {
		span += minutesPerDay
	}
	worked := span - breakMinutes
	if worked < 0 {
		worked = 0
	}
	return lineitem.Round(decimal.NewFromInt(int64(worked)).Div(decimal.NewFromInt(60))), nil
}
