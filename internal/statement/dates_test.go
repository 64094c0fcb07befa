package statement

import "testing"

func TestGuessDateLayout(t *testing.T) {
	tests := []struct {
		input  string
		layout string
		ok     bool
	}{
		{"2024-01-15", "2006-01-02", true},
		{"15/01/2024", "02/01/2006", true},
		// Ambiguous day/month resolves day-first.
		{"02/01/2024", "02/01/2006", true},
		{"15-01-2024", "02-01-2006", true},
		{"15 Jan 2024", "02 Jan 2006", true},
		{"15-Jan-2024", "02-Jan-2006", true},
		{"Jan 15, 2024", "Jan 02, 2006", true},
		{"15.01.2024", "02.01.2006", true},
		{"2024-01-15 09:30:00", "2006-01-02 15:04:05", true},
		{"  2024-01-15  ", "2006-01-02", true},
		{"not a date", "", false},
		{"", "", false},
		{"Opening Balance", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			layout, ok := GuessDateLayout(tt.input)
			if ok != tt.ok || layout != tt.layout {
				t.Errorf("GuessDateLayout(%q) = %q, %v; want %q, %v", tt.input, layout, ok, tt.layout, tt.ok)
			}
		})
	}
}

func TestDetectDateLayout(t *testing.T) {
	t.Run("majority wins", func(t *testing.T) {
		rows := []ExtractedRow{
			{DateLayout: "02/01/2006"},
			{DateLayout: "2006-01-02"},
			{DateLayout: "02/01/2006"},
		}
		if got := DetectDateLayout(rows); got != "02/01/2006" {
			t.Errorf("DetectDateLayout() = %q, want 02/01/2006", got)
		}
	})

	t.Run("tie keeps the earliest row's layout", func(t *testing.T) {
		rows := []ExtractedRow{
			{DateLayout: "2006-01-02"},
			{DateLayout: "02/01/2006"},
		}
		if got := DetectDateLayout(rows); got != "2006-01-02" {
			t.Errorf("DetectDateLayout() = %q, want 2006-01-02", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := DetectDateLayout(nil); got != "" {
			t.Errorf("DetectDateLayout(nil) = %q, want empty", got)
		}
	})
}

func TestReformatDate(t *testing.T) {
	t.Run("day-first to ISO", func(t *testing.T) {
		got, err := ReformatDate("02/01/2024", "02/01/2006")
		if err != nil {
			t.Fatalf("ReformatDate() unexpected error: %v", err)
		}
		if got != "2024-01-02" {
			t.Errorf("ReformatDate() = %q, want 2024-01-02", got)
		}
	})

	t.Run("mismatched layout errors", func(t *testing.T) {
		if _, err := ReformatDate("2024-01-15", "02/01/2006"); err == nil {
			t.Error("Expected error for mismatched layout")
		}
	})
}
