package contract

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

type cacheKey struct {
	kind    Kind
	address common.Address
}

// Cache memoizes bindings by (kind, address). At most one binding is built per key
// for the life of the cache, even under concurrent Get calls.
type Cache struct {
	mu       sync.RWMutex
	bindings map[cacheKey]*Binding

	caller   Caller
	identity Identity
	built    atomic.Int64
}

// NewCache returns an empty cache that builds bindings against caller.
func NewCache(caller Caller, identity Identity) *Cache {
	return &Cache{
		bindings: make(map[cacheKey]*Binding),
		caller:   caller,
		identity: identity,
	}
}

// Get returns the binding for (kind, address), building it on first use.
func (c *Cache) Get(kind Kind, address common.Address) (*Binding, error) {
	key := cacheKey{kind: kind, address: address}

	c.mu.RLock()
	b, ok := c.bindings[key]
	c.mu.RUnlock()
	if ok {
		return b, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.bindings[key]; ok {
		return b, nil
	}

	parsed, err := ParsedABI(kind)
	if err != nil {
		return nil, err
	}

	b = newBinding(kind, address, parsed, c.caller, c.identity)
	c.bindings[key] = b
	c.built.Add(1)
	return b, nil
}

// Token, Router, Factory, Pair and Wrapped are typed shortcuts over Get.
func (c *Cache) Token(address common.Address) (*Binding, error) {
	return c.Get(FungibleToken, address)
}

func (c *Cache) Router(address common.Address) (*Binding, error) {
	return c.Get(Router, address)
}

func (c *Cache) Factory(address common.Address) (*Binding, error) {
	return c.Get(Factory, address)
}

func (c *Cache) Pair(address common.Address) (*Binding, error) {
	return c.Get(Pair, address)
}

func (c *Cache) Wrapped(address common.Address) (*Binding, error) {
	return c.Get(WrappedGas, address)
}

// Len reports how many bindings are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bindings)
}

// Built reports how many bindings have been constructed.
func (c *Cache) Built() int64 {
	return c.built.Load()
}
