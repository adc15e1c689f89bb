package asset_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexops/internal/asset"
)

var (
	wbnb = asset.NewToken(common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"), "WBNB", "Wrapped BNB", 18)
	usdc = asset.NewToken(common.HexToAddress("0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"), "USDC", "USD Coin", 6)
)

func TestAmount_Basic(t *testing.T) {
	one := asset.NewAmount(wbnb, big.NewInt(1e18))

	if one.IsZero() {
		t.Error("expected non-zero amount")
	}
	if !one.ToDecimal().Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", one.ToDecimal())
	}
	if one.String() != "1 WBNB" {
		t.Errorf("expected '1 WBNB', got '%s'", one.String())
	}
}

func TestAmount_AddSub(t *testing.T) {
	one := asset.NewAmount(wbnb, big.NewInt(1e18))
	two := asset.NewAmount(wbnb, big.NewInt(2e18))

	sum, err := one.Add(two)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.ToDecimal().Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected 3, got %s", sum.ToDecimal())
	}

	if _, err := one.Sub(two); err == nil {
		t.Error("expected error for negative result")
	}
}

func TestAmount_CannotMixAssets(t *testing.T) {
	one := asset.NewAmount(wbnb, big.NewInt(1e18))
	oneUSDC := asset.NewAmount(usdc, big.NewInt(1e6))

	if _, err := one.Add(oneUSDC); err == nil {
		t.Error("expected error when adding different assets")
	}
	if _, err := one.Cmp(oneUSDC); err == nil {
		t.Error("expected error when comparing different assets")
	}
}

func TestParseDecimal_UsesAssetDecimals(t *testing.T) {
	amount, err := asset.ParseString(usdc, "99.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount.Raw().Cmp(big.NewInt(99_500_000)) != 0 {
		t.Errorf("expected 99500000, got %s", amount.Raw())
	}
}

func TestParseDecimal_TruncatesExtraDigits(t *testing.T) {
	amount, err := asset.ParseString(usdc, "1.1234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount.Raw().Cmp(big.NewInt(1_123_456)) != 0 {
		t.Errorf("expected truncation to 1123456, got %s", amount.Raw())
	}
}

func TestParseDecimal_RejectsNegative(t *testing.T) {
	if _, err := asset.ParseString(usdc, "-1"); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestNativeAsset(t *testing.T) {
	bnb := asset.NewNative("BNB")
	if !bnb.IsNative() || bnb.Decimals() != asset.NativeDecimals {
		t.Errorf("unexpected native asset %v decimals=%d", bnb, bnb.Decimals())
	}
}
