package domain

import "testing"

func TestPriceStore_AdoptsInitialScale(t *testing.T) {
	s := NewPriceStore()
	fp, _, err := s.SetLastPrice("BTC-USDT", "50000.1", 1000)
	if err != nil {
		t.Fatalf("SetLastPrice: %v", err)
	}
	if fp.Value != 500001 || fp.Scale != 1 {
		t.Fatalf("expected {500001 1}, got %+v", fp)
	}
}

func TestPriceStore_PrecisionUpgrade(t *testing.T) {
	s := NewPriceStore()
	if _, _, err := s.SetLastPrice("BTC-USDT", "50000.1", 1000); err != nil {
		t.Fatalf("first SetLastPrice: %v", err)
	}
	fp, _, err := s.SetLastPrice("BTC-USDT", "50000.123", 2000)
	if err != nil {
		t.Fatalf("second SetLastPrice: %v", err)
	}
	if fp.Scale != 3 || fp.Value != 50000123 {
		t.Fatalf("expected scale 3 value 50000123, got %+v", fp)
	}
	if FormatPrice(fp.Value, fp.Scale) != "50000.123" {
		t.Fatalf("FormatPrice mismatch: %s", FormatPrice(fp.Value, fp.Scale))
	}
}

func TestPriceStore_ScaleNeverShrinksOnCoarserUpdate(t *testing.T) {
	s := NewPriceStore()
	if _, _, err := s.SetLastPrice("BTC-USDT", "50000.123", 1000); err != nil {
		t.Fatalf("first SetLastPrice: %v", err)
	}
	fp, _, err := s.SetLastPrice("BTC-USDT", "50000.1", 2000)
	if err != nil {
		t.Fatalf("second SetLastPrice: %v", err)
	}
	if fp.Scale != 3 {
		t.Fatalf("expected scale to stay at 3, got %d", fp.Scale)
	}
	if FormatPrice(fp.Value, fp.Scale) != "50000.100" {
		t.Fatalf("expected padded representation 50000.100, got %s", FormatPrice(fp.Value, fp.Scale))
	}
}

func TestPriceStore_DefaultsTimestampToNow(t *testing.T) {
	s := NewPriceStore()
	_, ts, err := s.SetLastPrice("BTC-USDT", "1", 0)
	if err != nil {
		t.Fatalf("SetLastPrice: %v", err)
	}
	if ts == 0 {
		t.Fatal("expected a non-zero default timestamp")
	}
}

func TestPriceStore_MalformedInputIsRejected(t *testing.T) {
	s := NewPriceStore()
	if _, _, err := s.SetLastPrice("BTC-USDT", "not-a-number", 1); err == nil {
		t.Fatal("expected an error for malformed price digits")
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		value, scale uint64
		want         string
	}{
		{12345, 2, "123.45"},
		{5, 3, "0.005"},
		{100, 0, "100"},
		{0, 2, "0.00"},
	}
	for _, c := range cases {
		if got := FormatPrice(c.value, c.scale); got != c.want {
			t.Errorf("FormatPrice(%d, %d) = %q, want %q", c.value, c.scale, got, c.want)
		}
	}
}
