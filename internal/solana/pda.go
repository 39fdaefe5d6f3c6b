package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// DecodePublicKey decodes a base58 public key and checks its length.
func DecodePublicKey(address string) ([]byte, error) {
	b, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", address, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("public key %q has %d bytes, want 32", address, len(b))
	}
	return b, nil
}

// ValidPublicKey reports whether address is a base58 encoded 32-byte key.
func ValidPublicKey(address string) bool {
	_, err := DecodePublicKey(address)
	return err == nil
}

// MetadataPDA derives the Metaplex metadata account for a mint.
// Seeds: ["metadata", metaplex_program_id, mint]
func MetadataPDA(mint string) (string, error) {
	mintBytes, err := DecodePublicKey(mint)
	if err != nil {
		return "", err
	}
	programBytes, err := DecodePublicKey(MetaplexProgramID)
	if err != nil {
		return "", err
	}

	pda, _, err := FindProgramAddress([][]byte{
		[]byte("metadata"),
		programBytes,
		mintBytes,
	}, programBytes)
	return pda, err
}

// FindProgramAddress derives a Program Derived Address using the Solana algorithm:
// sha256(seeds || bump || programID || "ProgramDerivedAddress"), taking the first
// bump from 255 downwards whose hash is off the ed25519 curve.
func FindProgramAddress(seeds [][]byte, programID []byte) (string, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), uint8(bump), nil
		}
	}

	return "", 0, fmt.Errorf("no viable bump seed")
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
