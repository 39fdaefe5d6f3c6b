// Package closure closes selected token accounts in one transaction and
// tracks the transaction until it is confirmed.
package closure

import (
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"solana-rent-reclaim/internal/domain"
)

// StepKind is the type of one planned instruction.
type StepKind string

const (
	StepBurn  StepKind = "burn"
	StepClose StepKind = "close"
	StepFee   StepKind = "fee"
)

// Step is one instruction of a closure transaction.
type Step struct {
	Kind        StepKind
	Account     string // token account, or the fee collector for StepFee
	Mint        string
	Amount      uint64 // raw tokens for StepBurn, lamports for StepFee
	Instruction solanago.Instruction
}

// Plan is the ordered instruction list closing a set of token accounts.
type Plan struct {
	Owner       string
	Accounts    []string
	Steps       []Step
	BurnCount   int
	FeeLamports uint64
	Records     []domain.TokenAccountRecord
}

// Instructions returns the instructions in transaction order.
func (p *Plan) Instructions() []solanago.Instruction {
	out := make([]solanago.Instruction, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Instruction
	}
	return out
}

// Count returns the number of steps of kind.
func (p *Plan) Count(kind StepKind) int {
	n := 0
	for _, s := range p.Steps {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// FeeConfig is the process-wide service fee.
type FeeConfig struct {
	Collector          string
	LamportsPerAccount uint64
}

// Validate checks that the fee collector is a public key.
func (c FeeConfig) Validate() error {
	if c.Collector == "" {
		return errors.New("fee collector is required")
	}
	if _, err := solanago.PublicKeyFromBase58(c.Collector); err != nil {
		return fmt.Errorf("fee collector %q: %w", c.Collector, err)
	}
	return nil
}

// Builder turns selected records into a closure plan.
type Builder struct {
	fee       FeeConfig
	collector solanago.PublicKey
}

// NewBuilder creates a builder paying fees to cfg.Collector.
func NewBuilder(cfg FeeConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	collector := solanago.MustPublicKeyFromBase58(cfg.Collector)
	return &Builder{fee: cfg, collector: collector}, nil
}

// Fee returns the fee configuration.
func (b *Builder) Fee() FeeConfig {
	return b.fee
}

// Plan builds, for each record, a BurnChecked of its full balance when the
// balance is positive followed by a CloseAccount returning rent to owner, and
// one fee transfer of LamportsPerAccount * len(records) at the end.
func (b *Builder) Plan(owner string, records []domain.TokenAccountRecord) (*Plan, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptySelection
	}

	ownerKey, err := solanago.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner %q: %v", domain.ErrInvalidInput, owner, err)
	}

	plan := &Plan{
		Owner:   owner,
		Records: records,
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.AccountAddress]; dup {
			return nil, fmt.Errorf("%w: account %s selected twice", domain.ErrInvalidInput, r.AccountAddress)
		}
		seen[r.AccountAddress] = struct{}{}

		account, err := solanago.PublicKeyFromBase58(r.AccountAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: account %q: %v", domain.ErrInvalidInput, r.AccountAddress, err)
		}

		if amount := r.BurnAmount(); amount > 0 {
			mint, err := solanago.PublicKeyFromBase58(r.MintAddress)
			if err != nil {
				return nil, fmt.Errorf("%w: mint %q: %v", domain.ErrInvalidInput, r.MintAddress, err)
			}
			plan.Steps = append(plan.Steps, Step{
				Kind:    StepBurn,
				Account: r.AccountAddress,
				Mint:    r.MintAddress,
				Amount:  amount,
				Instruction: token.NewBurnCheckedInstruction(
					amount,
					r.Decimals,
					account,
					mint,
					ownerKey,
					[]solanago.PublicKey{},
				).Build(),
			})
			plan.BurnCount++
		}

		plan.Steps = append(plan.Steps, Step{
			Kind:    StepClose,
			Account: r.AccountAddress,
			Mint:    r.MintAddress,
			Instruction: token.NewCloseAccountInstruction(
				account,
				ownerKey,
				ownerKey,
				[]solanago.PublicKey{},
			).Build(),
		})
		plan.Accounts = append(plan.Accounts, r.AccountAddress)
	}

	plan.FeeLamports = b.fee.LamportsPerAccount * uint64(len(records))
	plan.Steps = append(plan.Steps, Step{
		Kind:        StepFee,
		Account:     b.fee.Collector,
		Amount:      plan.FeeLamports,
		Instruction: system.NewTransferInstruction(plan.FeeLamports, ownerKey, b.collector).Build(),
	})

	return plan, nil
}

// Transaction compiles the plan into an unsigned transaction paid by the owner.
func (p *Plan) Transaction(blockhash string) (*solanago.Transaction, error) {
	hash, err := solanago.HashFromBase58(blockhash)
	if err != nil {
		return nil, fmt.Errorf("parse blockhash: %w", err)
	}
	payer, err := solanago.PublicKeyFromBase58(p.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}

	tx, err := solanago.NewTransaction(p.Instructions(), hash, solanago.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("compile transaction: %w", err)
	}
	return tx, nil
}
