package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubGateway struct {
	symbols   map[string]string
	decimals  map[string]uint8
	err       error
	callCount int64
}

func (g *stubGateway) Symbol(ctx context.Context, tokenAddress string) (string, error) {
	atomic.AddInt64(&g.callCount, 1)
	if g.err != nil {
		return "", g.err
	}
	return g.symbols[tokenAddress], nil
}

func (g *stubGateway) Decimals(ctx context.Context, tokenAddress string) (uint8, error) {
	atomic.AddInt64(&g.callCount, 1)
	if g.err != nil {
		return 0, g.err
	}
	return g.decimals[tokenAddress], nil
}

func (g *stubGateway) calls() int64 {
	return atomic.LoadInt64(&g.callCount)
}

const daiAddress = "0x6B175474E89094C44Da98b954EedeAC495271d0F"

func newDaiGateway() *stubGateway {
	return &stubGateway{
		symbols:  map[string]string{daiAddress: "DAI"},
		decimals: map[string]uint8{daiAddress: 18},
	}
}

func TestResolveCachesPerAddress(t *testing.T) {
	gateway := newDaiGateway()
	resolver := NewResolver(gateway, NewMetadataStore())

	first := resolver.Resolve(context.Background(), daiAddress)
	assert.Equal(t, Metadata{Symbol: "DAI", Decimals: 18}, first)
	assert.EqualValues(t, 2, gateway.calls()) // one symbol read, one decimals read

	second := resolver.Resolve(context.Background(), daiAddress)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 2, gateway.calls()) // served from the store
}

func TestResolveNormalizesAddressCase(t *testing.T) {
	gateway := newDaiGateway()
	store := NewMetadataStore()
	resolver := NewResolver(gateway, store)

	resolver.Resolve(context.Background(), daiAddress)

	// A differently-cased address must hit the same cache entry.
	md, ok := store.Get("0x6b175474e89094c44da98b954eedeac495271d0f")
	assert.True(t, ok)
	assert.Equal(t, "DAI", md.Symbol)
	assert.Equal(t, 1, store.Len())
}

func TestResolveFallbackOnError(t *testing.T) {
	gateway := &stubGateway{err: errors.New("execution reverted")}
	resolver := NewResolver(gateway, NewMetadataStore())

	md := resolver.Resolve(context.Background(), daiAddress)

	assert.Equal(t, Metadata{Symbol: FallbackSymbol, Decimals: FallbackDecimals}, md)
}

func TestResolveFallbackOnEmptySymbol(t *testing.T) {
	gateway := &stubGateway{
		symbols:  map[string]string{daiAddress: ""},
		decimals: map[string]uint8{daiAddress: 18},
	}
	resolver := NewResolver(gateway, NewMetadataStore())

	md := resolver.Resolve(context.Background(), daiAddress)

	assert.Equal(t, FallbackSymbol, md.Symbol)
	assert.Equal(t, FallbackDecimals, md.Decimals)
}

func TestResolveFallbackIsNotRetried(t *testing.T) {
	gateway := &stubGateway{err: errors.New("rpc timeout")}
	resolver := NewResolver(gateway, NewMetadataStore())

	resolver.Resolve(context.Background(), daiAddress)
	callsAfterFirst := gateway.calls()

	// The gateway recovers, but the fallback stays pinned for the session.
	gateway.err = nil
	gateway.symbols = map[string]string{daiAddress: "DAI"}
	gateway.decimals = map[string]uint8{daiAddress: 18}

	md := resolver.Resolve(context.Background(), daiAddress)
	assert.Equal(t, FallbackSymbol, md.Symbol)
	assert.Equal(t, callsAfterFirst, gateway.calls())
}

func TestResolveConcurrentSameAddress(t *testing.T) {
	gateway := newDaiGateway()
	store := NewMetadataStore()
	resolver := NewResolver(gateway, store)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			md := resolver.Resolve(context.Background(), daiAddress)
			assert.Equal(t, "DAI", md.Symbol)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.Len())
}
