package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"x", 0, "x"},
		{"¿Dónde está?", 5, "¿Dónd..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestOneLine(t *testing.T) {
	if got := OneLine("  Paris\n is\tthe capital \n"); got != "Paris is the capital" {
		t.Errorf("OneLine = %q", got)
	}
}
