package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/dexops/internal/apperror"
)

// Caller is the read-only node surface a binding needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Identity is the network and signer context every binding is built with.
type Identity struct {
	ChainID  *big.Int
	From     common.Address
	GasLimit uint64
}

// Invocation is a packed state-changing call, ready to be drafted into a transaction.
type Invocation struct {
	To       common.Address
	Method   string
	Data     []byte
	GasLimit uint64
}

// Binding ties one ABI to one address.
type Binding struct {
	kind     Kind
	address  common.Address
	abi      abi.ABI
	caller   Caller
	identity Identity
}

func newBinding(kind Kind, address common.Address, parsed abi.ABI, caller Caller, id Identity) *Binding {
	return &Binding{kind: kind, address: address, abi: parsed, caller: caller, identity: id}
}

func (b *Binding) Kind() Kind              { return b.kind }
func (b *Binding) Address() common.Address { return b.address }
func (b *Binding) ABI() abi.ABI            { return b.abi }
func (b *Binding) Identity() Identity      { return b.identity }

// Pack encodes a call to method.
func (b *Binding) Pack(method string, args ...any) ([]byte, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractABIError,
			apperror.WithContextf("%s.%s", b.kind, method), apperror.WithCause(err))
	}
	return data, nil
}

// Call executes a read-only method against the latest block and returns the decoded outputs.
func (b *Binding) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := b.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	to := b.address
	raw, err := b.caller.CallContract(ctx, ethereum.CallMsg{From: b.identity.From, To: &to, Data: data}, nil)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContextf("%s(%s).%s", b.kind, b.address.Hex(), method), apperror.WithCause(err))
	}

	out, err := b.abi.Unpack(method, raw)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractABIError,
			apperror.WithContextf("unpack %s.%s", b.kind, method), apperror.WithCause(err))
	}
	return out, nil
}

// Invoke packs a state-changing call using the binding's gas limit policy.
func (b *Binding) Invoke(method string, args ...any) (Invocation, error) {
	data, err := b.Pack(method, args...)
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{To: b.address, Method: method, Data: data, GasLimit: b.identity.GasLimit}, nil
}

// EventID returns the topic hash of a named event.
func (b *Binding) EventID(name string) (common.Hash, error) {
	ev, ok := b.abi.Events[name]
	if !ok {
		return common.Hash{}, apperror.New(apperror.CodeContractABIError,
			apperror.WithContextf("%s has no event %s", b.kind, name))
	}
	return ev.ID, nil
}

// UnpackLog decodes the non-indexed fields of a log into out.
func (b *Binding) UnpackLog(out any, event string, log types.Log) error {
	if err := b.abi.UnpackIntoInterface(out, event, log.Data); err != nil {
		return apperror.New(apperror.CodeContractABIError,
			apperror.WithContextf("unpack event %s", event), apperror.WithCause(err))
	}
	return nil
}
