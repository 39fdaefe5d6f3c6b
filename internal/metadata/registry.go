package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"solana-rent-reclaim/internal/domain"
)

// RegistryToken is one entry of the static token registry.
type RegistryToken struct {
	ChainID  int      `json:"chainId" yaml:"chainId"`
	Address  string   `json:"address" yaml:"address"`
	Symbol   string   `json:"symbol" yaml:"symbol"`
	Name     string   `json:"name" yaml:"name"`
	Decimals int      `json:"decimals" yaml:"decimals"`
	LogoURI  string   `json:"logoURI" yaml:"logoURI"`
	Tags     []string `json:"tags" yaml:"tags"`
}

// Metadata converts the entry to resolved token metadata.
func (t RegistryToken) Metadata() domain.TokenMetadata {
	return domain.TokenMetadata{
		Name:     t.Name,
		Symbol:   t.Symbol,
		ImageURL: t.LogoURI,
		Source:   domain.MetadataSourceRegistry,
	}
}

type registryDocument struct {
	Tokens []RegistryToken `json:"tokens" yaml:"tokens"`
}

// Registry is an immutable mint-address index over a token list.
type Registry struct {
	byMint map[string]RegistryToken
}

// NewRegistry indexes tokens by exact mint address. Later duplicates win.
func NewRegistry(tokens []RegistryToken) *Registry {
	r := &Registry{byMint: make(map[string]RegistryToken, len(tokens))}
	for _, t := range tokens {
		if t.Address == "" {
			continue
		}
		r.byMint[t.Address] = t
	}
	return r
}

// ParseRegistry decodes a registry document. YAML is accepted as well as JSON.
func ParseRegistry(data []byte) (*Registry, error) {
	var doc registryDocument

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parse registry json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse registry yaml: %w", err)
		}
	}

	return NewRegistry(doc.Tokens), nil
}

// LoadRegistry reads a registry document from path.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", filepath.Base(path), err)
	}
	reg, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return reg, nil
}

// Lookup returns the registry entry for mint or domain.ErrNotFound.
func (r *Registry) Lookup(mint string) (RegistryToken, error) {
	if r == nil {
		return RegistryToken{}, domain.ErrNotFound
	}
	t, ok := r.byMint[strings.TrimSpace(mint)]
	if !ok {
		return RegistryToken{}, fmt.Errorf("%w: mint %s not in registry", domain.ErrNotFound, mint)
	}
	return t, nil
}

// Len returns the number of indexed mints.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byMint)
}
