// Package symbol handles validation and sanitization of the stock
// identifiers carried by inbound requests. Handlers run these checks before
// the settlement engine is invoked; the ledger assumes its inputs are clean.
package symbol

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidSymbol is returned for tickers that are not 1-5 letters.
	ErrInvalidSymbol = errors.New("symbol: invalid ticker symbol")

	// ErrInvalidName is returned when a stock name is empty after
	// sanitization.
	ErrInvalidName = errors.New("symbol: invalid stock name")
)

// tickerRegex matches normalized exchange tickers: 1-5 uppercase letters.
var tickerRegex = regexp.MustCompile(`^[A-Z]{1,5}$`)

// nonLetter strips everything outside A-Z after upcasing.
var nonLetter = regexp.MustCompile(`[^A-Z]`)

// SanitizeName strips characters with HTML/injection significance from a
// display name and trims surrounding whitespace. Returns ErrInvalidName if
// nothing printable remains.
func SanitizeName(name string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '\'', '"', '&':
			return -1
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", ErrInvalidName
	}
	return cleaned, nil
}

// ParseTicker normalizes and validates a ticker symbol: upcased, stripped
// of non-letters, and required to be 1-5 characters.
func ParseTicker(raw string) (string, error) {
	cleaned := nonLetter.ReplaceAllString(strings.ToUpper(strings.TrimSpace(raw)), "")
	if !tickerRegex.MatchString(cleaned) {
		return "", ErrInvalidSymbol
	}
	return cleaned, nil
}
