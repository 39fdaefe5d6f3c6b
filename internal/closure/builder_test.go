package closure

import (
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-rent-reclaim/internal/domain"
)

const (
	testOwner    = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	feeCollector = "G2J3z518ZaWAzCG2NzhNquJgAhqN66H1B1uh281BjoDE"
	acct1        = "DXuAFMUoRRQCXndGymaszyLeWBh4Z8769JNqAJ9SwPok"
	acct2        = "GBavENXeBCULvXPg2z6JcTAsKyzdAwPyjydbN8C7RL3s"
	acct3        = "CbrZ54tvuVu93njvNjyj4t6v2phc7vuqwbExnpc1E6bh"
	acct4        = "9JWZfQJhs7BvW5Ni54Up9DXtKeqbvBHM1ZfdW5PkEjZy"
	usdcMint     = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	wsolMint     = "So11111111111111111111111111111111111111112"
	testHash     = "4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM"
)

func testFee() FeeConfig {
	return FeeConfig{Collector: feeCollector, LamportsPerAccount: 10_000}
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(testFee())
	require.NoError(t, err)
	return b
}

func rec(account, mint string, raw uint64, decimals uint8) domain.TokenAccountRecord {
	return domain.NewTokenAccountRecord(domain.RawTokenAccount{
		AccountAddress: account,
		MintAddress:    mint,
		RawAmount:      raw,
		Decimals:       decimals,
	})
}

func TestBuilder_Plan_BurnsCloseAndFee(t *testing.T) {
	b := newTestBuilder(t)

	// Two positive balances, two empty accounts
	records := []domain.TokenAccountRecord{
		rec(acct1, usdcMint, 2_500_000, 6),
		rec(acct2, wsolMint, 0, 9),
		rec(acct3, usdcMint, 1, 6),
		rec(acct4, wsolMint, 0, 9),
	}

	plan, err := b.Plan(testOwner, records)
	require.NoError(t, err)

	assert.Equal(t, 2, plan.Count(StepBurn))
	assert.Equal(t, 4, plan.Count(StepClose))
	assert.Equal(t, 1, plan.Count(StepFee))
	assert.Len(t, plan.Steps, 7)
	assert.Equal(t, 2, plan.BurnCount)
	assert.Equal(t, uint64(40_000), plan.FeeLamports)
	assert.Equal(t, []string{acct1, acct2, acct3, acct4}, plan.Accounts)

	kinds := make([]StepKind, len(plan.Steps))
	for i, s := range plan.Steps {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []StepKind{StepBurn, StepClose, StepClose, StepBurn, StepClose, StepClose, StepFee}, kinds)

	// Burn takes the full raw balance
	assert.Equal(t, uint64(2_500_000), plan.Steps[0].Amount)
	assert.Equal(t, uint64(1), plan.Steps[3].Amount)

	fee := plan.Steps[len(plan.Steps)-1]
	assert.Equal(t, feeCollector, fee.Account)
	assert.Equal(t, uint64(40_000), fee.Amount)
}

func TestBuilder_Plan_Programs(t *testing.T) {
	b := newTestBuilder(t)
	plan, err := b.Plan(testOwner, []domain.TokenAccountRecord{rec(acct1, usdcMint, 5, 0)})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	owner := solanago.MustPublicKeyFromBase58(testOwner)

	burn := plan.Steps[0].Instruction
	assert.True(t, burn.ProgramID().Equals(token.ProgramID))

	closeIx := plan.Steps[1].Instruction
	assert.True(t, closeIx.ProgramID().Equals(token.ProgramID))
	closeAccounts := closeIx.Accounts()
	require.GreaterOrEqual(t, len(closeAccounts), 3)
	assert.True(t, closeAccounts[0].PublicKey.Equals(solanago.MustPublicKeyFromBase58(acct1)))
	assert.True(t, closeAccounts[1].PublicKey.Equals(owner), "rent returns to the owner")

	fee := plan.Steps[2].Instruction
	assert.True(t, fee.ProgramID().Equals(system.ProgramID))
	feeAccounts := fee.Accounts()
	require.Len(t, feeAccounts, 2)
	assert.True(t, feeAccounts[0].PublicKey.Equals(owner))
	assert.True(t, feeAccounts[1].PublicKey.Equals(solanago.MustPublicKeyFromBase58(feeCollector)))
}

func TestBuilder_Plan_FallsBackToUIAmount(t *testing.T) {
	b := newTestBuilder(t)
	r := domain.TokenAccountRecord{AccountAddress: acct1, MintAddress: usdcMint, UIAmount: 1.5, Decimals: 6}

	plan, err := b.Plan(testOwner, []domain.TokenAccountRecord{r})
	require.NoError(t, err)
	require.Equal(t, StepBurn, plan.Steps[0].Kind)
	assert.Equal(t, uint64(1_500_000), plan.Steps[0].Amount)
}

func TestBuilder_Plan_Errors(t *testing.T) {
	b := newTestBuilder(t)

	_, err := b.Plan(testOwner, nil)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)

	_, err = b.Plan("not-a-key", []domain.TokenAccountRecord{rec(acct1, usdcMint, 0, 6)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = b.Plan(testOwner, []domain.TokenAccountRecord{rec(acct1, usdcMint, 0, 6), rec(acct1, usdcMint, 0, 6)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = b.Plan(testOwner, []domain.TokenAccountRecord{rec(acct1, "bad mint", 3, 6)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFeeConfig_Validate(t *testing.T) {
	assert.NoError(t, testFee().Validate())
	assert.Error(t, FeeConfig{}.Validate())
	assert.Error(t, FeeConfig{Collector: "nope"}.Validate())

	_, err := NewBuilder(FeeConfig{})
	assert.Error(t, err)
}

func TestPlan_Transaction(t *testing.T) {
	b := newTestBuilder(t)
	plan, err := b.Plan(testOwner, []domain.TokenAccountRecord{
		rec(acct1, usdcMint, 5, 0),
		rec(acct2, wsolMint, 0, 9),
	})
	require.NoError(t, err)

	tx, err := plan.Transaction(testHash)
	require.NoError(t, err)

	assert.Equal(t, testOwner, tx.Message.AccountKeys[0].String(), "owner pays")
	assert.Equal(t, testHash, tx.Message.RecentBlockhash.String())
	assert.Len(t, tx.Message.Instructions, len(plan.Steps))
	assert.Equal(t, uint8(1), tx.Message.Header.NumRequiredSignatures, "only the owner signs")

	_, err = plan.Transaction("bad hash")
	assert.Error(t, err)
}
