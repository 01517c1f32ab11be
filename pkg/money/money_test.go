package money

import "testing"

func TestParseCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"5000", 500000},
		{"5000.50", 500050},
		{"0.01", 1},
		{"-12.34", -1234},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.in)
		if err != nil {
			t.Fatalf("ParseCents(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseCentsRejectsSubCent(t *testing.T) {
	if _, err := ParseCents("10.001"); err == nil {
		t.Fatalf("expected error for sub-cent precision")
	}
	if _, err := ParseCents("abc"); err == nil {
		t.Fatalf("expected error for non-numeric input")
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(500050); got != "5000.50" {
		t.Fatalf("expected 5000.50, got %q", got)
	}
	if got := FormatCents(0); got != "0.00" {
		t.Fatalf("expected 0.00, got %q", got)
	}
}

func TestAverageCents(t *testing.T) {
	if got := AverageCents(100, 3); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	if got := AverageCents(500000, 0); got != 0 {
		t.Fatalf("expected 0 for zero count, got %d", got)
	}
}
