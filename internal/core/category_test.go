package core

import "testing"

func TestNormalizeCategoryFallback(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		if got := NormalizeCategory(in); got != OtherCategory {
			t.Fatalf("%q: expected Other, got %q", in, got)
		}
	}
	if got := NormalizeCategoryPtr(nil); got != OtherCategory {
		t.Fatalf("nil: expected Other, got %q", got)
	}
}

func TestNormalizeCategoryIdempotent(t *testing.T) {
	for _, in := range []string{"Groceries", "  Eating   Out ", "", "Other", "ß tax"} {
		once := NormalizeCategory(in)
		if twice := NormalizeCategory(once); twice != once {
			t.Fatalf("%q: normalize not idempotent: %q vs %q", in, once, twice)
		}
	}
}

func TestCategoryKeyFoldsCase(t *testing.T) {
	if !SameCategory("Groceries", " groceries ") {
		t.Fatalf("expected case-insensitive match")
	}
	if SameCategory("Groceries", "Grocery") {
		t.Fatalf("expected different categories")
	}
	if CategoryKey("") != CategoryKey("other") {
		t.Fatalf("empty category must share the Other key")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"100", true},
		{"12,50", true},
		{"1,250.00", true},
		{"0", false},
		{"-5", false},
		{"abc", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseAmount(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q: expected ok, got %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
}
