package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranklabs/txrank/service/computebudget"
)

var testSignature = solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildTestTransaction constructs a transaction with a system transfer plus
// the given compute budget payloads.
func buildTestTransaction(budgetPayloads ...[]byte) *solana.Transaction {
	payer := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	systemProgram := solana.MustPublicKeyFromBase58("11111111111111111111111111111112")

	transferData := make([]byte, 12)
	transferData[0] = 2
	instructions := []solana.CompiledInstruction{
		{ProgramIDIndex: 1, Accounts: []uint16{0, 0}, Data: transferData},
	}
	for _, payload := range budgetPayloads {
		instructions = append(instructions, solana.CompiledInstruction{
			ProgramIDIndex: 2,
			Data:           payload,
		})
	}

	return &solana.Transaction{
		Signatures: []solana.Signature{testSignature},
		Message: solana.Message{
			AccountKeys:  []solana.PublicKey{payer, systemProgram, computebudget.ProgramID},
			Instructions: instructions,
		},
	}
}

// makeTransactionWithMeta builds an rpc.TransactionWithMeta via JSON, since
// the envelope type has unexported fields.
func makeTransactionWithMeta(t *testing.T, tx *solana.Transaction, fee uint64) rpc.TransactionWithMeta {
	t.Helper()

	txBin, err := tx.MarshalBinary()
	require.NoError(t, err)

	payload := fmt.Sprintf(`{"transaction": [%q, "base64"], "meta": {"fee": %d}}`,
		base64.StdEncoding.EncodeToString(txBin), fee)

	var twm rpc.TransactionWithMeta
	require.NoError(t, json.Unmarshal([]byte(payload), &twm))
	return twm
}

// mockRPCClient implements RPCClient for tests.
type mockRPCClient struct {
	slot     uint64
	slotErr  error
	block    *rpc.GetBlockResult
	blockErr error
}

func (m *mockRPCClient) GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	return m.slot, m.slotErr
}

func (m *mockRPCClient) GetBlockWithOpts(ctx context.Context, slot uint64, opts *rpc.GetBlockOpts) (*rpc.GetBlockResult, error) {
	return m.block, m.blockErr
}

func TestGetLatestSlot(t *testing.T) {
	client := NewClient(&mockRPCClient{slot: 245_000_123}, nil, testLogger())

	slot, err := client.GetLatestSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(245_000_123), slot)
}

func TestGetBlockScores(t *testing.T) {
	blockTime := solana.UnixTimeSeconds(time.Now().Unix())

	priced := buildTestTransaction(
		computebudget.SetComputeUnitLimitData(150_000),
		computebudget.SetComputeUnitPriceData(5_000),
	)
	unpriced := buildTestTransaction()
	malformed := buildTestTransaction([]byte{9, 9})

	block := &rpc.GetBlockResult{
		BlockTime: &blockTime,
		Transactions: []rpc.TransactionWithMeta{
			makeTransactionWithMeta(t, priced, 9_000),
			makeTransactionWithMeta(t, unpriced, 5_000),
			makeTransactionWithMeta(t, malformed, 5_000),
		},
	}

	client := NewClient(&mockRPCClient{block: block}, nil, testLogger())

	scored, err := client.GetBlockScores(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, scored, 3)

	assert.Equal(t, testSignature.String(), scored[0].Signature)
	assert.Equal(t, uint64(1000), scored[0].Slot)
	assert.Equal(t, uint64(5_000), scored[0].Priority)
	assert.Equal(t, uint64(150_000), scored[0].ComputeUnitLimit)
	assert.Equal(t, uint64(9_000), scored[0].Fee)
	assert.False(t, scored[0].Unresolved)

	assert.Equal(t, uint64(0), scored[1].Priority)
	assert.Equal(t, uint64(computebudget.DefaultInstructionComputeUnitLimit), scored[1].ComputeUnitLimit)
	assert.False(t, scored[1].Unresolved)

	// Malformed budget directives yield no priority signal; the transaction
	// is kept so the scheduler can rank it last.
	assert.True(t, scored[2].Unresolved)
	assert.Equal(t, uint64(0), scored[2].Priority)
}

func TestGetBlockScores_RPCError(t *testing.T) {
	client := NewClient(&mockRPCClient{blockErr: fmt.Errorf("block not available")}, nil, testLogger())

	_, err := client.GetBlockScores(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get block 42")
}

func TestScoreTransaction_Idempotent(t *testing.T) {
	client := NewClient(&mockRPCClient{}, nil, testLogger())
	tx := buildTestTransaction(computebudget.SetComputeUnitPriceData(77))

	first := client.scoreTransaction(tx, 1, time.Time{}, 0)
	second := client.scoreTransaction(tx, 1, time.Time{}, 0)
	assert.Equal(t, first, second)
}
