package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/solana/stub"
)

func testRegistry() *Registry {
	return NewRegistry([]RegistryToken{
		{Address: usdcMint, Symbol: "USDC", Name: "USD Coin", LogoURI: "https://registry.example.com/usdc.png"},
		{Address: wsolMint, Symbol: "SOL", Name: "Wrapped SOL", LogoURI: "https://registry.example.com/sol.png"},
	})
}

func TestService_Resolve_OnChainImageWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"image":"https://onchain.example.com/usdc.png"}`)
	}))
	defer server.Close()

	rpc := stub.NewRPCClient()
	addMetadataAccount(t, rpc, usdcMint, "USD Coin", "USDC", server.URL)

	svc := NewService(Options{RPC: rpc, HTTPClient: server.Client(), Registry: testRegistry()})
	meta := svc.Resolve(context.Background(), usdcMint)

	assert.Equal(t, "https://onchain.example.com/usdc.png", meta.ImageURL)
	assert.Equal(t, domain.MetadataSourceOnChain, meta.Source)
}

func TestService_Resolve_RegistryFallback(t *testing.T) {
	// No on-chain account: registry supplies everything
	svc := NewService(Options{RPC: stub.NewRPCClient(), Registry: testRegistry()})
	meta := svc.Resolve(context.Background(), wsolMint)

	assert.Equal(t, "Wrapped SOL", meta.Name)
	assert.Equal(t, "SOL", meta.Symbol)
	assert.Equal(t, "https://registry.example.com/sol.png", meta.ImageURL)
	assert.Equal(t, domain.MetadataSourceRegistry, meta.Source)
}

func TestService_Resolve_RegistryImageKeepsOnChainNames(t *testing.T) {
	rpc := stub.NewRPCClient()
	addMetadataAccount(t, rpc, usdcMint, "USD Coin (on-chain)", "USDC.e", "")

	svc := NewService(Options{RPC: rpc, Registry: testRegistry()})
	meta := svc.Resolve(context.Background(), usdcMint)

	assert.Equal(t, "USD Coin (on-chain)", meta.Name)
	assert.Equal(t, "USDC.e", meta.Symbol)
	assert.Equal(t, "https://registry.example.com/usdc.png", meta.ImageURL)
}

func TestService_Resolve_BothFail(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetError(errors.New("unreachable"))

	svc := NewService(Options{RPC: rpc, Registry: testRegistry()})
	meta := svc.Resolve(context.Background(), "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")

	assert.True(t, meta.Empty())
}

func TestService_Resolve_OnChainNamesWithoutImage(t *testing.T) {
	rpc := stub.NewRPCClient()
	mint := "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	addMetadataAccount(t, rpc, mint, "Tether", "USDT", "")

	svc := NewService(Options{RPC: rpc})
	meta := svc.Resolve(context.Background(), mint)

	assert.Equal(t, "Tether", meta.Name)
	assert.Empty(t, meta.ImageURL)
}

func TestService_Resolve_RegistryOnly(t *testing.T) {
	svc := NewService(Options{Registry: testRegistry()})
	meta := svc.Resolve(context.Background(), usdcMint)
	assert.Equal(t, "USDC", meta.Symbol)
}
