package utils

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-03-14", " 2025-03-14 ", "2025-03-14T18:30:00Z", "2025-03-14T08:00:00+02:00"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}
	for _, in := range []string{"", "14/03/2025", "2025-13-01"} {
		if _, err := ParseDate(in); err == nil {
			t.Fatalf("ParseDate(%q) should fail", in)
		}
	}
}
