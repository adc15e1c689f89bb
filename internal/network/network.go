// Package network holds the immutable chain profiles the trader can run against.
package network

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/asset"
)

// Profile describes one EVM network. Values are copied out; a Profile is never mutated.
type Profile struct {
	Key             string
	Name            string
	ChainID         *big.Int
	RPCURL          string
	WrappedGasToken common.Address
	GasSymbol       string
	ExplorerURL     string
}

var profiles = map[string]Profile{
	"bsc": {
		Key:             "bsc",
		Name:            "BNB Smart Chain",
		ChainID:         big.NewInt(56),
		RPCURL:          "https://bsc-dataseed.binance.org",
		WrappedGasToken: common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
		GasSymbol:       "BNB",
		ExplorerURL:     "https://bscscan.com",
	},
	"polygon": {
		Key:             "polygon",
		Name:            "Polygon",
		ChainID:         big.NewInt(137),
		RPCURL:          "https://rpc-mainnet.maticvigil.com",
		WrappedGasToken: common.HexToAddress("0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270"),
		GasSymbol:       "MATIC",
		ExplorerURL:     "https://polygonscan.com",
	},
	"bitkub": {
		Key:             "bitkub",
		Name:            "Bitkub Chain",
		ChainID:         big.NewInt(96),
		RPCURL:          "https://rpc.bitkubchain.io",
		WrappedGasToken: common.HexToAddress("0x67eBD850304c70d983B2d1b93ea79c7CD6c3F6b5"),
		GasSymbol:       "KUB",
		ExplorerURL:     "https://bkcscan.com",
	},
}

// Lookup returns the profile registered under key (case-insensitive).
func Lookup(key string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Profile{}, apperror.New(apperror.CodeUnsupportedNetwork,
			apperror.WithContextf("%q (known: %s)", key, strings.Join(Keys(), ", ")))
	}
	p.ChainID = new(big.Int).Set(p.ChainID)
	return p, nil
}

// Keys lists the known profile keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(profiles))
	for k := range profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithRPC returns a copy using a different RPC endpoint.
func (p Profile) WithRPC(url string) Profile {
	if url != "" {
		p.RPCURL = url
	}
	return p
}

// GasAsset returns the native coin as an asset.
func (p Profile) GasAsset() *asset.Asset {
	return asset.NewNative(p.GasSymbol)
}

// TxURL links a transaction hash to the explorer.
func (p Profile) TxURL(hash common.Hash) string {
	return fmt.Sprintf("%s/tx/%s", p.ExplorerURL, hash.Hex())
}

// AddressURL links an account or contract to the explorer.
func (p Profile) AddressURL(addr common.Address) string {
	return fmt.Sprintf("%s/address/%s", p.ExplorerURL, addr.Hex())
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (chain %s)", p.Name, p.ChainID)
}
