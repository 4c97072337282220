package symbol

import "testing"

func TestParseTicker_Valid(t *testing.T) {
	tests := map[string]string{
		"AAPL":    "AAPL",
		"aapl":    "AAPL",
		" msft ":  "MSFT",
		"brk.b":   "BRKB",
		"GOOGL":   "GOOGL",
		"A":       "A",
		"tsla\n":  "TSLA",
		"nv da":   "NVDA",
		"$AMZN":   "AMZN",
		"ibm-123": "IBM",
	}
	for raw, want := range tests {
		got, err := ParseTicker(raw)
		if err != nil {
			t.Errorf("ParseTicker(%q) unexpected error: %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("ParseTicker(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParseTicker_Invalid(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"123",
		"......",
		"TOOLONG", // more than 5 letters
		"<script>",
	}
	for _, raw := range tests {
		if _, err := ParseTicker(raw); err == nil {
			t.Errorf("expected error for ticker %q", raw)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"Apple Inc":                  "Apple Inc",
		"  Apple Inc  ":              "Apple Inc",
		`<script>alert("x")</script>`: "scriptalert(x)/script",
		"AT&T":                       "ATT",
		"O'Reilly Automotive":        "OReilly Automotive",
	}
	for raw, want := range tests {
		got, err := SanitizeName(raw)
		if err != nil {
			t.Errorf("SanitizeName(%q) unexpected error: %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestSanitizeName_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", `<>"&'`} {
		if _, err := SanitizeName(raw); err != ErrInvalidName {
			t.Errorf("SanitizeName(%q): expected ErrInvalidName, got %v", raw, err)
		}
	}
}
