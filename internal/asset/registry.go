package asset

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe registry of known collateral tokens.
type Registry struct {
	byAddress map[common.Address]*Token
	bySymbol  map[string]*Token
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byAddress: make(map[common.Address]*Token),
		bySymbol:  make(map[string]*Token),
	}
}

// Register adds a token. Panics if the address is already registered.
func (r *Registry) Register(t *Token) {
	if t == nil {
		panic("asset: cannot register nil token")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAddress[t.Address()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", t))
	}
	r.byAddress[t.Address()] = t
	r.bySymbol[t.Symbol()] = t
}

// Ensure returns the token at address, registering it under symbol if unknown.
func (r *Registry) Ensure(address common.Address, symbol string) *Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.byAddress[address]; ok {
		return t
	}
	t := NewToken(address, symbol)
	r.byAddress[address] = t
	if _, taken := r.bySymbol[symbol]; !taken {
		r.bySymbol[symbol] = t
	}
	return t
}

// Get retrieves a token by address.
func (r *Registry) Get(address common.Address) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byAddress[address]
	return t, ok
}

// GetBySymbol retrieves a token by symbol.
func (r *Registry) GetBySymbol(symbol string) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.bySymbol[symbol]
	return t, ok
}

// All returns all registered tokens ordered by symbol.
func (r *Registry) All() []*Token {
	r.mu.RLock()
	result := make([]*Token, 0, len(r.byAddress))
	for _, t := range r.byAddress {
		result = append(result, t)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Symbol() < result[j].Symbol() })
	return result
}

// Count returns the number of registered tokens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddress)
}
