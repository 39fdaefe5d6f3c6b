package domain

// MetadataSource identifies where resolved metadata came from.
type MetadataSource string

const (
	MetadataSourceNone     MetadataSource = ""
	MetadataSourceOnChain  MetadataSource = "onchain"
	MetadataSourceRegistry MetadataSource = "registry"
)

// TokenMetadata is the human-readable description of a mint.
// Every field is optional; an empty value means nothing could be resolved.
type TokenMetadata struct {
	Name     string
	Symbol   string
	IconURI  string // off-chain JSON URI from the on-chain metadata account
	ImageURL string // resolved image, from the URI document or the registry
	Source   MetadataSource
}

// Empty reports whether no field was resolved.
func (m TokenMetadata) Empty() bool {
	return m.Name == "" && m.Symbol == "" && m.IconURI == "" && m.ImageURL == ""
}
