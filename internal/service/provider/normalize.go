package provider

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	xhttp "FinFuse/pkg/http"

	"github.com/shopspring/decimal"
)

// rateLimitPhrases are the wordings providers use in 200-OK bodies when they throttle.
var rateLimitPhrases = []string{
	"rate limit",
	"too many requests",
	"api call frequency",
	"requests per minute",
	"call frequency",
}

// isRateLimitMessage reports whether a provider message means "slow down".
func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range rateLimitPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// parsePercent accepts "1.23%", "1.23" or "-0.5 %" and returns percent units.
func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse percent %q: %w", s, err)
	}
	return v, nil
}

// fractionToPercent converts 0.015 into 1.5.
func fractionToPercent(f float64) float64 { return f * 100 }

// percentChange returns (to-from)/from in percent units, or 0 when from is zero.
func percentChange(from, to decimal.Decimal) float64 {
	if from.IsZero() {
		return 0
	}
	f, _ := to.Sub(from).Div(from).Float64()
	return fractionToPercent(f)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse int %q: %w", s, err)
	}
	return v, nil
}

// unixTime handles seconds and milliseconds epoch values.
func unixTime(v int64) time.Time {
	switch {
	case v <= 0:
		return time.Time{}
	case v > 1e12:
		return time.UnixMilli(v).UTC()
	default:
		return time.Unix(v, 0).UTC()
	}
}

// classifyHTTPError maps transport-level failures onto the cascade's sentinels.
func classifyHTTPError(err error) error {
	switch xhttp.StatusCode(err) {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%v: %w", err, ErrRateLimited)
	case http.StatusNotFound:
		return fmt.Errorf("%v: %w", err, ErrNoData)
	}
	return err
}
