package entity

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Apple Inc.", "apple"},
		{"Apple, Inc.", "apple"},
		{"  APPLE   INC  ", "apple"},
		{"The Goldman Sachs Group, Inc.", "goldman sachs"},
		{"Berkshire Hathaway Holdings Corp", "berkshire hathaway"},
		{"McDonald's Corporation", "mcdonalds"},
		{"AT&T Inc.", "at t"},
		{"Alphabet-Class A", "alphabet class a"},
		{"Group", "group"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTicker(t *testing.T) {
	for _, in := range []string{"$aapl", " AAPL ", "aapl"} {
		if got := normalizeTicker(in); got != "AAPL" {
			t.Fatalf("normalizeTicker(%q) = %q", in, got)
		}
	}
}
