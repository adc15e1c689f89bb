// Package chaintest provides an in-memory EVM node and a simulated clock for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// CallHandler answers a decoded contract call with output values.
type CallHandler func(args []any) ([]any, error)

// MineFunc decides the receipt for a broadcast tx. mined=false leaves it pending forever.
type MineFunc func(tx *types.Transaction, from common.Address) (status uint64, mined bool)

type handler struct {
	method abi.Method
	fn     CallHandler
}

// FakeNode implements the chain Node port in memory. Safe for concurrent use.
type FakeNode struct {
	mu sync.Mutex

	chainID     *big.Int
	gasPrice    *big.Int
	gasEstimate uint64
	estimateErr error
	onEstimate  func(ctx context.Context, msg ethereum.CallMsg) error
	sendErr     error
	receiptErr  error
	receiptFail int
	head        uint64

	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	handlers map[common.Address]map[[4]byte]handler
	receipts map[common.Hash]*types.Receipt
	logs     []types.Log

	sent         []*types.Transaction
	onSend       func(tx *types.Transaction, from common.Address)
	mine         MineFunc
	receiptCalls map[common.Hash]int
	estimates    []ethereum.CallMsg
	gasPriceHits int
}

// NewFakeNode returns a node at head 100 that mines every transaction successfully.
func NewFakeNode(chainID int64) *FakeNode {
	return &FakeNode{
		chainID:      big.NewInt(chainID),
		gasPrice:     big.NewInt(5_000_000_000),
		gasEstimate:  150_000,
		head:         100,
		balances:     make(map[common.Address]*big.Int),
		nonces:       make(map[common.Address]uint64),
		handlers:     make(map[common.Address]map[[4]byte]handler),
		receipts:     make(map[common.Hash]*types.Receipt),
		receiptCalls: make(map[common.Hash]int),
		mine: func(*types.Transaction, common.Address) (uint64, bool) {
			return types.ReceiptStatusSuccessful, true
		},
	}
}

func (n *FakeNode) SetGasPrice(wei *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gasPrice = new(big.Int).Set(wei)
}

func (n *FakeNode) SetGasEstimate(gas uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gasEstimate = gas
}

// FailEstimate makes EstimateGas return err (nil restores success).
func (n *FakeNode) FailEstimate(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.estimateErr = err
}

// OnEstimate runs fn before each estimate, outside the node lock. A non-nil return fails the
// estimate. Tests use it to hold one caller inside EstimateGas.
func (n *FakeNode) OnEstimate(fn func(ctx context.Context, msg ethereum.CallMsg) error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onEstimate = fn
}

// FailReceipts makes the next count receipt lookups return err. Lookups are still counted.
func (n *FakeNode) FailReceipts(count int, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receiptFail, n.receiptErr = count, err
}

// FailSend makes SendTransaction return err (nil restores success).
func (n *FakeNode) FailSend(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendErr = err
}

func (n *FakeNode) SetBalance(account common.Address, wei *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[account] = new(big.Int).Set(wei)
}

func (n *FakeNode) SetPendingNonce(account common.Address, nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nonces[account] = nonce
}

// OnSend runs fn for each accepted transaction, before it is mined. Use it to apply state
// changes such as an approve raising an allowance.
func (n *FakeNode) OnSend(fn func(tx *types.Transaction, from common.Address)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onSend = fn
}

// SetMine replaces the mining policy.
func (n *FakeNode) SetMine(fn MineFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mine = fn
}

// Handle registers a read-only call answer for method on the contract at to.
func (n *FakeNode) Handle(to common.Address, contractABI abi.ABI, method string, fn CallHandler) {
	m, ok := contractABI.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: ABI has no method %s", method))
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.handlers[to] == nil {
		n.handlers[to] = make(map[[4]byte]handler)
	}
	n.handlers[to][[4]byte(m.ID)] = handler{method: m, fn: fn}
}

// AdvanceHead mines k empty blocks.
func (n *FakeNode) AdvanceHead(k uint64) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.head += k
	return n.head
}

// AddLog appends a log at the current head unless BlockNumber is set.
func (n *FakeNode) AddLog(l types.Log) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if l.BlockNumber == 0 {
		l.BlockNumber = n.head
	}
	n.logs = append(n.logs, l)
}

// Confirm mines a previously pending transaction with status.
func (n *FakeNode) Confirm(hash common.Hash, status uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.head++
	n.receipts[hash] = &types.Receipt{
		TxHash:      hash,
		Status:      status,
		BlockNumber: new(big.Int).SetUint64(n.head),
		GasUsed:     21_000,
	}
}

// Sent returns broadcast transactions in order.
func (n *FakeNode) Sent() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

// ReceiptCalls counts eth_getTransactionReceipt calls for hash.
func (n *FakeNode) ReceiptCalls(hash common.Hash) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.receiptCalls[hash]
}

// Estimates returns every EstimateGas call message.
func (n *FakeNode) Estimates() []ethereum.CallMsg {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ethereum.CallMsg(nil), n.estimates...)
}

// GasPriceCalls counts eth_gasPrice calls.
func (n *FakeNode) GasPriceCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gasPriceHits
}

func (n *FakeNode) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(n.chainID), nil
}

func (n *FakeNode) SuggestGasPrice(context.Context) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gasPriceHits++
	return new(big.Int).Set(n.gasPrice), nil
}

func (n *FakeNode) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	n.mu.Lock()
	hook := n.onEstimate
	n.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, msg); err != nil {
			return 0, err
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.estimates = append(n.estimates, msg)
	if n.estimateErr != nil {
		return 0, n.estimateErr
	}
	return n.gasEstimate, nil
}

func (n *FakeNode) SendTransaction(_ context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(n.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	n.mu.Lock()
	if n.sendErr != nil {
		err := n.sendErr
		n.mu.Unlock()
		return err
	}
	if tx.Nonce() < n.nonces[from] {
		n.mu.Unlock()
		return errors.New("nonce too low")
	}
	n.nonces[from] = tx.Nonce() + 1
	n.sent = append(n.sent, tx)
	onSend, mine := n.onSend, n.mine
	n.mu.Unlock()

	if onSend != nil {
		onSend(tx, from)
	}
	if status, mined := mine(tx, from); mined {
		n.Confirm(tx.Hash(), status)
	}
	return nil
}

func (n *FakeNode) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receiptCalls[hash]++
	if n.receiptFail > 0 {
		n.receiptFail--
		return nil, n.receiptErr
	}
	if r, ok := n.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (n *FakeNode) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if b, ok := n.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (n *FakeNode) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nonces[account], nil
}

func (n *FakeNode) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("execution reverted")
	}

	n.mu.Lock()
	h, ok := n.handlers[*msg.To][[4]byte(msg.Data[:4])]
	n.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for %x on %s", msg.Data[:4], msg.To.Hex())
	}

	args, err := h.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("bad calldata for %s: %w", h.method.Name, err)
	}
	out, err := h.fn(args)
	if err != nil {
		return nil, err
	}
	return h.method.Outputs.Pack(out...)
}

func (n *FakeNode) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []types.Log
	for _, l := range n.logs {
		if matches(l, q) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (n *FakeNode) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, rpc.ErrNotificationsUnsupported
}

func (n *FakeNode) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	num := n.head
	if number != nil {
		if number.Uint64() > n.head {
			return nil, ethereum.NotFound
		}
		num = number.Uint64()
	}
	return &types.Header{
		Number:   new(big.Int).SetUint64(num),
		Time:     uint64(time.Now().Unix()),
		GasLimit: 30_000_000,
	}, nil
}

func (n *FakeNode) SubscribeNewHead(context.Context, chan<- *types.Header) (ethereum.Subscription, error) {
	return nil, rpc.ErrNotificationsUnsupported
}

func matches(l types.Log, q ethereum.FilterQuery) bool {
	if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
		return false
	}
	if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
		return false
	}
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		found := false
		for _, t := range alternatives {
			if t == l.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DecodeCall splits calldata into its method name and arguments.
func DecodeCall(contractABI abi.ABI, data []byte) (string, []any, error) {
	if len(data) < 4 {
		return "", nil, errors.New("calldata shorter than selector")
	}
	m, err := contractABI.MethodById(data[:4])
	if err != nil {
		return "", nil, err
	}
	args, err := m.Inputs.Unpack(data[4:])
	return m.Name, args, err
}
