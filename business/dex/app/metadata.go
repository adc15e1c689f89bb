package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/asset"
	"github.com/fd1az/dexops/internal/cache"
	"github.com/fd1az/dexops/internal/contract"
)

type metaAttr string

const (
	attrDecimals metaAttr = contract.MethodDecimals
	attrSymbol   metaAttr = contract.MethodSymbol
	attrName     metaAttr = contract.MethodName
)

type metaKey struct {
	token common.Address
	attr  metaAttr
}

// MetadataCache memoizes immutable ERC20 attributes for the session. Concurrent cold reads
// may each hit the node; the first stored value wins and is returned to every caller.
type MetadataCache struct {
	bindings *contract.Cache
	values   *cache.Cache[metaKey, any]
}

// NewMetadataCache creates an empty cache reading through bindings.
func NewMetadataCache(bindings *contract.Cache) *MetadataCache {
	return &MetadataCache{
		bindings: bindings,
		values:   cache.New[metaKey, any](0),
	}
}

// Decimals returns the token's decimals.
func (m *MetadataCache) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	v, err := m.lookup(ctx, token, attrDecimals)
	if err != nil {
		return 0, err
	}
	return v.(uint8), nil
}

// Symbol returns the token's symbol.
func (m *MetadataCache) Symbol(ctx context.Context, token common.Address) (string, error) {
	v, err := m.lookup(ctx, token, attrSymbol)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Name returns the token's name.
func (m *MetadataCache) Name(ctx context.Context, token common.Address) (string, error) {
	v, err := m.lookup(ctx, token, attrName)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Asset returns the token as an asset. Only decimals are required; a token without symbol or
// name still resolves.
func (m *MetadataCache) Asset(ctx context.Context, token common.Address) (*asset.Asset, error) {
	decimals, err := m.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	symbol, _ := m.Symbol(ctx, token)
	name, _ := m.Name(ctx, token)
	return asset.NewToken(token, symbol, name, decimals), nil
}

// Len counts cached attributes.
func (m *MetadataCache) Len() int {
	return m.values.Len()
}

func (m *MetadataCache) lookup(ctx context.Context, token common.Address, attr metaAttr) (any, error) {
	key := metaKey{token: token, attr: attr}
	if v, ok := m.values.Get(ctx, key); ok {
		return v, nil
	}

	b, err := m.bindings.Token(token)
	if err != nil {
		return nil, err
	}
	out, err := b.Call(ctx, string(attr))
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, apperror.New(apperror.CodeContractABIError,
			apperror.WithContextf("%s.%s returned %d values", token.Hex(), attr, len(out)))
	}

	var v any
	switch attr {
	case attrDecimals:
		d, ok := out[0].(uint8)
		if !ok {
			return nil, unexpectedType(token, attr, out[0])
		}
		v = d
	default:
		s, ok := out[0].(string)
		if !ok {
			return nil, unexpectedType(token, attr, out[0])
		}
		v = s
	}

	stored, _ := m.values.SetIfAbsent(ctx, key, v, 0)
	return stored, nil
}

func unexpectedType(token common.Address, attr metaAttr, v any) error {
	return apperror.New(apperror.CodeContractABIError,
		apperror.WithContext(fmt.Sprintf("%s.%s returned %T", token.Hex(), attr, v)))
}
