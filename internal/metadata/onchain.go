package metadata

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/solana"
)

// metadataV1Key is the account discriminator of Metaplex MetadataV1.
const metadataV1Key = 4

// maxURIDocument bounds the size of an off-chain metadata document.
const maxURIDocument = 1 << 20

// OnChainSource reads Metaplex metadata for a mint and follows its off-chain URI.
type OnChainSource struct {
	rpc        solana.RPCClient
	httpClient *http.Client
}

// NewOnChainSource creates a source backed by the RPC client.
// A nil httpClient uses a client with a 10 second timeout.
func NewOnChainSource(rpc solana.RPCClient, httpClient *http.Client) *OnChainSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &OnChainSource{rpc: rpc, httpClient: httpClient}
}

// Lookup returns the on-chain name, symbol and URI of mint, and the image from the
// URI document when the URI is a valid http(s) URL. Returns domain.ErrNotFound when
// the metadata account does not exist or cannot be parsed.
func (s *OnChainSource) Lookup(ctx context.Context, mint string) (domain.TokenMetadata, error) {
	pda, err := solana.MetadataPDA(mint)
	if err != nil {
		return domain.TokenMetadata{}, fmt.Errorf("%w: derive metadata account: %v", domain.ErrInvalidInput, err)
	}

	info, err := s.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return domain.TokenMetadata{}, fmt.Errorf("%w: get metadata account: %v", domain.ErrTransport, err)
	}
	if info == nil {
		return domain.TokenMetadata{}, fmt.Errorf("%w: metadata account %s", domain.ErrNotFound, pda)
	}

	meta, err := parseMetaplexData(info.Data)
	if err != nil {
		return domain.TokenMetadata{}, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	meta.Source = domain.MetadataSourceOnChain

	if isValidURL(meta.IconURI) {
		image, err := s.fetchImage(ctx, meta.IconURI)
		if err != nil {
			// Name and symbol are still usable without the document
			return meta, nil
		}
		meta.ImageURL = image
	}

	return meta, nil
}

// uriDocument is the off-chain JSON referenced by the metadata URI.
type uriDocument struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

func (s *OnChainSource) fetchImage(ctx context.Context, uri string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", domain.ErrTransport, uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
	}

	var doc uriDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxURIDocument)).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode %s: %w", uri, err)
	}
	if doc.Image == "" {
		return "", fmt.Errorf("%w: no image in %s", domain.ErrNotFound, uri)
	}
	return doc.Image, nil
}

// isValidURL reports whether raw is an absolute http or https URL.
func isValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// parseMetaplexData parses the Metaplex Token Metadata account data.
// Metaplex Metadata layout:
// - key: u8 (1 byte, 4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name: String (4 + length bytes, max 32 chars)
// - symbol: String (4 + length bytes, max 10 chars)
// - uri: String (4 + length bytes, max 200 chars)
// ...and more fields
func parseMetaplexData(data string) (domain.TokenMetadata, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return domain.TokenMetadata{}, fmt.Errorf("decode metadata: %w", err)
	}

	if len(decoded) < 65 {
		return domain.TokenMetadata{}, fmt.Errorf("metadata too short: %d", len(decoded))
	}
	if decoded[0] != metadataV1Key {
		return domain.TokenMetadata{}, fmt.Errorf("unexpected metadata key %d", decoded[0])
	}

	// Skip: key(1) + updateAuthority(32) + mint(32)
	offset := 65

	var meta domain.TokenMetadata
	fields := []struct {
		dst    *string
		maxLen uint32
	}{
		{&meta.Name, 100},
		{&meta.Symbol, 20},
		{&meta.IconURI, 400},
	}

	for _, f := range fields {
		s, next, err := readBorshString(decoded, offset, f.maxLen)
		if err != nil {
			return domain.TokenMetadata{}, err
		}
		*f.dst = s
		offset = next
	}

	return meta, nil
}

// readBorshString reads a 4-byte little-endian length prefixed string, trimming
// the NUL padding Metaplex writes to fixed-size fields.
func readBorshString(b []byte, offset int, maxLen uint32) (string, int, error) {
	if offset+4 > len(b) {
		return "", offset, fmt.Errorf("string length at %d out of range", offset)
	}
	n := binary.LittleEndian.Uint32(b[offset:])
	offset += 4

	if n > maxLen || offset+int(n) > len(b) {
		return "", offset, fmt.Errorf("string of %d bytes at %d out of range", n, offset)
	}
	s := strings.TrimRight(string(b[offset:offset+int(n)]), "\x00")
	return strings.TrimSpace(s), offset + int(n), nil
}
