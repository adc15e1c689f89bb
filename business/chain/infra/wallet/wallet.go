// Package wallet loads the single signing key from a V3 keystore file or a hex private key.
package wallet

import (
	"crypto/ecdsa"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/config"
)

// Wallet signs legacy and typed transactions for one account.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// New wraps an in-memory key.
func New(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// FromPrivateKey parses a hex key, with or without 0x.
func FromPrivateKey(hexKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeWalletLoadFailed,
			apperror.WithContext("invalid private key"), apperror.WithCause(err))
	}
	return New(key), nil
}

// FromKeystore decrypts a V3 keystore file.
func FromKeystore(path, password string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.New(apperror.CodeWalletLoadFailed,
			apperror.WithContext(path), apperror.WithCause(err))
	}

	k, err := keystore.DecryptKey(raw, password)
	if err != nil {
		return nil, apperror.New(apperror.CodeWalletLoadFailed,
			apperror.WithContextf("decrypt %s", path), apperror.WithCause(err))
	}
	return New(k.PrivateKey), nil
}

// Load picks the configured key source.
func Load(cfg config.WalletConfig) (*Wallet, error) {
	switch {
	case cfg.KeystorePath != "":
		return FromKeystore(cfg.KeystorePath, cfg.KeystorePassword)
	case cfg.PrivateKey != "":
		return FromPrivateKey(cfg.PrivateKey)
	default:
		return nil, apperror.New(apperror.CodeWalletLoadFailed,
			apperror.WithContext("no keystore_path or private_key configured"))
	}
}

func (w *Wallet) Address() common.Address {
	return w.address
}

// ShortAddress renders 0x1234...abcd.
func (w *Wallet) ShortAddress() string {
	return ShortAddress(w.address)
}

// SignTx signs tx with the latest signer for chainID.
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
}

// ShortAddress renders an address as its first 6 and last 4 hex characters.
func ShortAddress(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}
