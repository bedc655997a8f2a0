package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "carrental/internal/errors"
	"carrental/internal/validation"
)

// DurationMode selects how rental hours are derived from two HH:MM strings
type DurationMode string

const (
	// DurationDecimal reads "14:30" as the number 14.30, so 09:30 to 11:45 is 2.15 hours
	DurationDecimal DurationMode = "decimal"
	// DurationClock measures elapsed wall clock time, so 09:30 to 11:45 is 2.25 hours
	DurationClock DurationMode = "clock"
)

func ParseDurationMode(s string) (DurationMode, error) {
	switch mode := DurationMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "", DurationDecimal:
		return DurationDecimal, nil
	case DurationClock:
		return DurationClock, nil
	default:
		return "", fmt.Errorf("unknown duration mode %q", s)
	}
}

// RentalHours returns the billable hours between start and end
func RentalHours(mode DurationMode, start, end string) (float64, error) {
	if !validation.IsTime24(start) || !validation.IsTime24(end) {
		return 0, apperrors.Wrap(apperrors.ErrInvalidDuration, "times must be HH:MM, got %q and %q", start, end)
	}

	var hours float64
	switch mode {
	case DurationClock:
		hours = float64(minutesOf(end)-minutesOf(start)) / 60
	default:
		s, err := decimalHours(start)
		if err != nil {
			return 0, err
		}
		e, err := decimalHours(end)
		if err != nil {
			return 0, err
		}
		hours = e - s
	}

	if hours < 0 || math.IsNaN(hours) {
		return 0, apperrors.Wrap(apperrors.ErrInvalidDuration, "end time %s is before start time %s", end, start)
	}
	return hours, nil
}

// TotalCost is hours times the hourly price, rounded to cents on top of that
// product. The rounding matches the two-decimal cost column; the duration rule
// itself is untouched, so 2.15 hours at 10 still costs 21.5.
func TotalCost(hours, pricePerHour float64) float64 {
	return math.Round(hours*pricePerHour*100) / 100
}

func decimalHours(hhmm string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(hhmm, ":", ".", 1), 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInvalidDuration, "cannot read %q", hhmm)
	}
	return v, nil
}

func minutesOf(hhmm string) int {
	h, _ := strconv.Atoi(hhmm[:2])
	m, _ := strconv.Atoi(hhmm[3:])
	return h*60 + m
}

// minorUnits converts a major-unit amount to the provider's integer representation
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
