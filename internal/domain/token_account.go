package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RawTokenAccount is a token account as reported by the ledger.
type RawTokenAccount struct {
	AccountAddress string // token account holding the balance
	MintAddress    string // token type
	RawAmount      uint64 // integer balance in base units
	Decimals       uint8  // scale of RawAmount
}

// TokenAccountRecord is one row of the dashboard view.
// Metadata and UnitPrice are filled independently after the record is created.
type TokenAccountRecord struct {
	AccountAddress string
	MintAddress    string
	RawAmount      uint64
	UIAmount       float64
	Decimals       uint8
	Metadata       *TokenMetadata // nil until resolved
	UnitPrice      *float64       // nil: not yet resolved or unresolvable, never "zero"
}

// NewTokenAccountRecord creates an unenriched record from a ledger account.
func NewTokenAccountRecord(raw RawTokenAccount) TokenAccountRecord {
	return TokenAccountRecord{
		AccountAddress: raw.AccountAddress,
		MintAddress:    raw.MintAddress,
		RawAmount:      raw.RawAmount,
		UIAmount:       UIAmount(raw.RawAmount, raw.Decimals),
		Decimals:       raw.Decimals,
	}
}

// TotalValue returns UnitPrice * UIAmount. ok is false while the price is unresolved.
func (r TokenAccountRecord) TotalValue() (value float64, ok bool) {
	if r.UnitPrice == nil {
		return 0, false
	}
	return *r.UnitPrice * r.UIAmount, true
}

// BurnAmount returns the raw amount to burn before closing the account.
// Records built without a raw balance fall back to UIAmount * 10^Decimals.
func (r TokenAccountRecord) BurnAmount() uint64 {
	if r.RawAmount > 0 {
		return r.RawAmount
	}
	return RawAmount(r.UIAmount, r.Decimals)
}

// UIAmount converts a raw integer balance to its decimal-adjusted value.
func UIAmount(raw uint64, decimals uint8) float64 {
	v, _ := decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals)).Float64()
	return v
}

// RawAmount converts a decimal-adjusted value back to base units, truncating any
// precision below one base unit. Negative values map to zero.
func RawAmount(ui float64, decimals uint8) uint64 {
	d := decimal.NewFromFloat(ui).Shift(int32(decimals)).Truncate(0)
	if d.Sign() <= 0 {
		return 0
	}
	return d.BigInt().Uint64()
}
