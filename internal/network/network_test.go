package network_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/network"
)

func TestLookup_KnownProfiles(t *testing.T) {
	tests := []struct {
		key     string
		chainID int64
		symbol  string
	}{
		{"bsc", 56, "BNB"},
		{"Polygon", 137, "MATIC"},
		{" bitkub ", 96, "KUB"},
	}

	for _, tt := range tests {
		p, err := network.Lookup(tt.key)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.key, err)
		}
		if p.ChainID.Int64() != tt.chainID {
			t.Errorf("%s: chain id %s, want %d", tt.key, p.ChainID, tt.chainID)
		}
		if p.GasSymbol != tt.symbol {
			t.Errorf("%s: symbol %s, want %s", tt.key, p.GasSymbol, tt.symbol)
		}
		if p.WrappedGasToken == (common.Address{}) {
			t.Errorf("%s: missing wrapped gas token", tt.key)
		}
	}
}

func TestLookup_Unsupported(t *testing.T) {
	_, err := network.Lookup("solana")
	if apperror.GetCode(err) != apperror.CodeUnsupportedNetwork {
		t.Fatalf("expected CodeUnsupportedNetwork, got %v", err)
	}
}

func TestLookup_ReturnsCopies(t *testing.T) {
	a, _ := network.Lookup("bsc")
	a.ChainID.SetInt64(1)

	b, _ := network.Lookup("bsc")
	if b.ChainID.Int64() != 56 {
		t.Error("profile chain id was mutated through a lookup")
	}
}

func TestProfile_ExplorerLinks(t *testing.T) {
	p, _ := network.Lookup("bsc")
	hash := common.HexToHash("0x01")

	if got := p.TxURL(hash); got != "https://bscscan.com/tx/"+hash.Hex() {
		t.Errorf("unexpected tx url %s", got)
	}
	if p.WithRPC("").RPCURL != p.RPCURL {
		t.Error("empty override must keep default rpc")
	}
	if p.WithRPC("http://localhost:8545").RPCURL != "http://localhost:8545" {
		t.Error("override not applied")
	}
}
