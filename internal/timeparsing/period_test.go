package timeparsing

import (
	"testing"
	"time"
)

func TestParsePeriodCompact(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		input string
		want  string
	}{
		{"90d", "90d"},
		{"24h", "24h"},
		{"2w", "2w"},
		{"6m", "6m"},
		{"007d", "7d"},
		{"", "90d"},
		{"  14d ", "14d"},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.input, now)
		if err != nil {
			t.Errorf("ParsePeriod(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParsePeriodNaturalLanguage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := ParsePeriod("2 weeks ago", now)
	if err != nil {
		t.Fatalf("ParsePeriod: %v", err)
	}
	if got != "14d" {
		t.Errorf("ParsePeriod(\"2 weeks ago\") = %q, want 14d", got)
	}
}

func TestParsePeriodRejectsGarbage(t *testing.T) {
	now := time.Now()
	for _, input := range []string{"-5d", "d90", "90x"} {
		if _, err := ParsePeriod(input, now); err == nil {
			t.Errorf("ParsePeriod(%q) should fail", input)
		}
	}
}

func TestIsCompactPeriod(t *testing.T) {
	for _, yes := range []string{"90d", "24h", "2w", "6m"} {
		if !IsCompactPeriod(yes) {
			t.Errorf("IsCompactPeriod(%q) = false, want true", yes)
		}
	}
	for _, no := range []string{"", "90s", "xx", "2 weeks"} {
		if IsCompactPeriod(no) {
			t.Errorf("IsCompactPeriod(%q) = true, want false", no)
		}
	}
}
