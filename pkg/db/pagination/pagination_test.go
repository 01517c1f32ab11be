package pagination

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	token := EncodeToken(1234567890123)
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if got := DecodeToken(token); got != 1234567890123 {
		t.Fatalf("expected 1234567890123, got %d", got)
	}
}

func TestDecodeTokenMalformed(t *testing.T) {
	for _, token := range []string{"", "not-base64!!", "aWQ6YWJj", "c29tZXRoaW5n"} {
		if got := DecodeToken(token); got != 0 {
			t.Fatalf("expected 0 for %q, got %d", token, got)
		}
	}
}

func TestNormalizeClampsPageSize(t *testing.T) {
	p := Pagination{PageSize: 0}.Normalize()
	if p.PageSize != 25 {
		t.Fatalf("expected default page size, got %d", p.PageSize)
	}
	p = Pagination{PageSize: 9999}.Normalize()
	if p.PageSize != 200 {
		t.Fatalf("expected max page size, got %d", p.PageSize)
	}
}
