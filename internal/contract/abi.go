package contract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Method and event names used across the bindings.
const (
	MethodName                     = "name"
	MethodSymbol                   = "symbol"
	MethodDecimals                 = "decimals"
	MethodTotalSupply              = "totalSupply"
	MethodBalanceOf                = "balanceOf"
	MethodAllowance                = "allowance"
	MethodApprove                  = "approve"
	MethodTransfer                 = "transfer"
	MethodGetAmountsOut            = "getAmountsOut"
	MethodSwapExactTokensForTokens = "swapExactTokensForTokens"
	MethodFactory                  = "factory"
	MethodGetPair                  = "getPair"
	MethodGetReserves              = "getReserves"
	MethodToken0                   = "token0"
	MethodToken1                   = "token1"
	MethodDeposit                  = "deposit"
	MethodWithdraw                 = "withdraw"

	EventTransfer = "Transfer"
)

// ERC20ABI covers the fungible token surface used by the trader.
const ERC20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"owner","type":"address"},{"indexed":true,"name":"spender","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Approval","type":"event"}
]`

// RouterABI is the UniswapV2-style router subset.
const RouterABI = `[
	{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"factory","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// FactoryABI resolves pair addresses.
const FactoryABI = `[
	{"constant":true,"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
]`

// PairABI reads constant-product reserves.
const PairABI = `[
	{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// wrappedGasExtraABI is appended to ERC20ABI for the wrapped native token.
const wrappedGasExtraABI = `
	{"constant":false,"inputs":[],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},
	{"constant":false,"inputs":[{"name":"wad","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// WrappedGasABI is ERC20ABI plus deposit/withdraw.
var WrappedGasABI = strings.TrimSuffix(strings.TrimSpace(ERC20ABI), "]") + "," + wrappedGasExtraABI

var abiSources = map[Kind]string{
	FungibleToken: ERC20ABI,
	Router:        RouterABI,
	Factory:       FactoryABI,
	Pair:          PairABI,
	WrappedGas:    WrappedGasABI,
}

var (
	parsedMu sync.Mutex
	parsed   = make(map[Kind]abi.ABI)
)

// ParsedABI returns the parsed ABI for kind, parsing each source once per process.
func ParsedABI(kind Kind) (abi.ABI, error) {
	parsedMu.Lock()
	defer parsedMu.Unlock()

	if a, ok := parsed[kind]; ok {
		return a, nil
	}

	src, ok := abiSources[kind]
	if !ok {
		return abi.ABI{}, fmt.Errorf("contract: no ABI for %s", kind)
	}

	a, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("contract: parse %s ABI: %w", kind, err)
	}
	parsed[kind] = a
	return a, nil
}

// MustABI is ParsedABI for the built-in sources, which always parse.
func MustABI(kind Kind) abi.ABI {
	a, err := ParsedABI(kind)
	if err != nil {
		panic(err)
	}
	return a
}
