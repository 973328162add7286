package reference

import "testing"

func TestCountryAlpha2(t *testing.T) {
	code, ok := CountryAlpha2("fra")
	if !ok || code != "FR" {
		t.Fatalf("expected FR, got %q ok=%v", code, ok)
	}
	if _, ok := CountryAlpha2("XXX"); ok {
		t.Fatalf("expected unknown country to miss")
	}
}

func TestUSStateCode(t *testing.T) {
	code, ok := USStateCode(" New York ")
	if !ok || code != "NY" {
		t.Fatalf("expected NY, got %q ok=%v", code, ok)
	}
	if _, ok := USStateCode("Borduria"); ok {
		t.Fatalf("expected unknown state to miss")
	}
}
