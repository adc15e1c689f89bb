package asset_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexops/internal/asset"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     string
	}{
		{"one ether", "1", 18, "1000000000000000000"},
		{"fractional usdc", "99.5", 6, "99500000"},
		{"truncates not rounds", "0.0000019", 6, "1"},
		{"zero decimals", "42.9", 0, "42"},
		{"zero", "0", 18, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asset.ToBaseUnits(decimal.RequireFromString(tt.amount), tt.decimals)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ToBaseUnits(%s, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestToBaseUnits_Negative(t *testing.T) {
	_, err := asset.ToBaseUnits(decimal.NewFromInt(-1), 18)
	if !errors.Is(err, asset.ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestFromBaseUnits(t *testing.T) {
	raw, _ := new(big.Int).SetString("123456789012345678901", 10)
	got, err := asset.FromBaseUnits(raw, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "123.456789012345678901" {
		t.Errorf("lost precision: %s", got)
	}

	if _, err := asset.FromBaseUnits(big.NewInt(-5), 6); !errors.Is(err, asset.ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount, got %v", err)
	}
	if _, err := asset.FromBaseUnits(nil, 6); !errors.Is(err, asset.ErrNilRaw) {
		t.Errorf("expected ErrNilRaw, got %v", err)
	}
}

// Values exactly representable in d fractional digits survive a round trip.
func TestBaseUnits_RoundTrip(t *testing.T) {
	values := []string{"0", "1", "10.0", "0.000001", "123456.789", "99.5", "1000000000"}
	decimalsList := []uint8{0, 2, 6, 8, 9, 18, 24}

	for _, d := range decimalsList {
		for _, v := range values {
			x := decimal.RequireFromString(v)
			if x.Exponent() < -int32(d) {
				continue
			}

			raw, err := asset.ToBaseUnits(x, d)
			if err != nil {
				t.Fatalf("ToBaseUnits(%s,%d): %v", v, d, err)
			}
			back, err := asset.FromBaseUnits(raw, d)
			if err != nil {
				t.Fatalf("FromBaseUnits(%s,%d): %v", raw, d, err)
			}
			if !back.Equal(x) {
				t.Errorf("round trip %s @%d decimals gave %s", v, d, back)
			}
		}
	}
}
