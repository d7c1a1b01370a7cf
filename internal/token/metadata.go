package token

import (
	"context"
	"strings"
	"sync"

	"github.com/fairfund-scanner/internal/logging"
)

// Fallback metadata applied whenever resolution fails. Display-only: no
// balance-critical decision may depend on resolved metadata.
const (
	FallbackSymbol   = "TOKEN"
	FallbackDecimals = uint8(18)
)

// Metadata describes an ERC20 token for display purposes
type Metadata struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// MetadataGateway reads ERC20 metadata from the chain
type MetadataGateway interface {
	Symbol(ctx context.Context, tokenAddress string) (string, error)
	Decimals(ctx context.Context, tokenAddress string) (uint8, error)
}

// MetadataStore is a session-scoped metadata cache keyed by lowercased token
// address. It is an explicit dependency of the Resolver rather than a hidden
// package-level singleton so tests and independent sessions stay isolated.
// Entries are append-only: the first write for an address wins, which keeps
// concurrent resolutions of the same token idempotent.
type MetadataStore struct {
	mu      sync.RWMutex
	entries map[string]Metadata
}

// NewMetadataStore creates an empty metadata store
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{entries: make(map[string]Metadata)}
}

// Get returns the cached metadata for a key, if present
func (s *MetadataStore) Get(key string) (Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.entries[key]
	return md, ok
}

// Len returns the number of cached entries
func (s *MetadataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// loadOrStore stores md for key unless an entry already exists, returning
// the entry that ends up cached.
func (s *MetadataStore) loadOrStore(key string, md Metadata) Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok {
		return existing
	}
	s.entries[key] = md
	return md
}

// Resolver resolves ERC20 metadata once per session and address.
//
// Resolution is best-effort: any failure (unsupported token, call revert,
// network error) yields the fallback metadata instead of an error, so one bad
// token cannot break a listing page. The fallback is cached like a successful
// result and is not retried for the session - a transient RPC failure pins
// that token's display to "TOKEN"/18 until restart.
type Resolver struct {
	gateway MetadataGateway
	store   *MetadataStore
}

// NewResolver creates a resolver backed by the given gateway and store
func NewResolver(gateway MetadataGateway, store *MetadataStore) *Resolver {
	return &Resolver{gateway: gateway, store: store}
}

// Resolve returns the metadata for a token address, consulting the session
// cache first. The symbol and decimals reads run concurrently.
func (r *Resolver) Resolve(ctx context.Context, tokenAddress string) Metadata {
	key := strings.ToLower(strings.TrimSpace(tokenAddress))
	if md, ok := r.store.Get(key); ok {
		return md
	}

	var (
		wg          sync.WaitGroup
		symbol      string
		symbolErr   error
		decimals    uint8
		decimalsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		symbol, symbolErr = r.gateway.Symbol(ctx, tokenAddress)
	}()
	go func() {
		defer wg.Done()
		decimals, decimalsErr = r.gateway.Decimals(ctx, tokenAddress)
	}()
	wg.Wait()

	md := Metadata{Symbol: symbol, Decimals: decimals}
	if symbolErr != nil || decimalsErr != nil || symbol == "" {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"token": tokenAddress,
		}).Warn("token metadata resolution failed, using fallback")
		md = Metadata{Symbol: FallbackSymbol, Decimals: FallbackDecimals}
	}

	return r.store.loadOrStore(key, md)
}
