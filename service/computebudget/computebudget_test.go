package computebudget

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var systemProgramID = solana.MustPublicKeyFromBase58("11111111111111111111111111111112")

// budgetInstruction wraps a raw compute budget payload in a ProgramInstruction.
func budgetInstruction(data []byte) ProgramInstruction {
	return ProgramInstruction{
		ProgramID:   ProgramID,
		Instruction: solana.CompiledInstruction{Data: data},
	}
}

// transferInstruction is a stand-in for any non-budget instruction.
func transferInstruction() ProgramInstruction {
	return ProgramInstruction{
		ProgramID:   systemProgramID,
		Instruction: solana.CompiledInstruction{Data: []byte{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}},
	}
}

func allFeatures() FeatureSet {
	return FeatureSet{AddSetLoadedAccountsDataSizeLimit: true}
}

func TestProcessInstructions_NoBudgetInstructions(t *testing.T) {
	limits, err := ProcessInstructions([]ProgramInstruction{
		transferInstruction(),
		transferInstruction(),
	}, allFeatures())

	require.NoError(t, err)
	assert.Equal(t, uint64(0), limits.ComputeUnitPrice)
	assert.Equal(t, 2*DefaultInstructionComputeUnitLimit, limits.ComputeUnitLimit)
	assert.Equal(t, uint32(0), limits.HeapBytes)
	assert.Equal(t, MaxLoadedAccountsDataSizeBytes, limits.LoadedAccountsDataSizeLimit)
}

func TestProcessInstructions_DefaultLimitIsCapped(t *testing.T) {
	// Enough instructions that the scaled default exceeds the cap.
	instructions := make([]ProgramInstruction, 0, 10)
	for range 10 {
		instructions = append(instructions, transferInstruction())
	}

	limits, err := ProcessInstructions(instructions, allFeatures())
	require.NoError(t, err)
	assert.Equal(t, MaxComputeUnitLimit, limits.ComputeUnitLimit)
}

func TestProcessInstructions_SetComputeUnitLimit(t *testing.T) {
	limits, err := ProcessInstructions([]ProgramInstruction{
		transferInstruction(),
		budgetInstruction(SetComputeUnitLimitData(101)),
	}, allFeatures())

	require.NoError(t, err)
	assert.Equal(t, uint32(101), limits.ComputeUnitLimit)
	assert.Equal(t, uint64(0), limits.ComputeUnitPrice)
}

func TestProcessInstructions_ExplicitLimitIsClamped(t *testing.T) {
	limits, err := ProcessInstructions([]ProgramInstruction{
		budgetInstruction(SetComputeUnitLimitData(MaxComputeUnitLimit + 1)),
	}, allFeatures())

	require.NoError(t, err)
	assert.Equal(t, MaxComputeUnitLimit, limits.ComputeUnitLimit)
}

func TestProcessInstructions_SetComputeUnitPrice(t *testing.T) {
	limits, err := ProcessInstructions([]ProgramInstruction{
		transferInstruction(),
		budgetInstruction(SetComputeUnitPriceData(1_000)),
	}, allFeatures())

	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), limits.ComputeUnitPrice)
	assert.Equal(t, DefaultInstructionComputeUnitLimit, limits.ComputeUnitLimit)
}

func TestProcessInstructions_RequestHeapFrame(t *testing.T) {
	limits, err := ProcessInstructions([]ProgramInstruction{
		transferInstruction(),
		budgetInstruction(RequestHeapFrameData(32 * 1024)),
	}, allFeatures())

	require.NoError(t, err)
	assert.Equal(t, uint32(32*1024), limits.HeapBytes)
	// Heap requests never affect price or limit resolution.
	assert.Equal(t, uint64(0), limits.ComputeUnitPrice)
	assert.Equal(t, DefaultInstructionComputeUnitLimit, limits.ComputeUnitLimit)
}

func TestProcessInstructions_InvalidHeapFrame(t *testing.T) {
	tests := []struct {
		name  string
		bytes uint32
	}{
		{"below minimum", 31 * 1024},
		{"above maximum", 257 * 1024},
		{"not 1KiB aligned", 32*1024 + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProcessInstructions([]ProgramInstruction{
				budgetInstruction(RequestHeapFrameData(tt.bytes)),
			}, allFeatures())
			assert.ErrorIs(t, err, ErrInvalidInstructionData)
		})
	}
}

func TestProcessInstructions_LastWriterWins(t *testing.T) {
	limits, err := ProcessInstructions([]ProgramInstruction{
		budgetInstruction(SetComputeUnitLimitData(100)),
		budgetInstruction(SetComputeUnitPriceData(5)),
		transferInstruction(),
		budgetInstruction(SetComputeUnitLimitData(200)),
		budgetInstruction(SetComputeUnitPriceData(9)),
	}, allFeatures())

	require.NoError(t, err)
	assert.Equal(t, uint32(200), limits.ComputeUnitLimit)
	assert.Equal(t, uint64(9), limits.ComputeUnitPrice)
}

func TestProcessInstructions_MalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty payload", []byte{}},
		{"deprecated request units", []byte{0, 1, 0, 0, 0, 1, 0, 0, 0}},
		{"unknown discriminator", []byte{9, 0, 0, 0, 0}},
		{"truncated u32", []byte{2, 1, 0}},
		{"truncated u64", []byte{3, 1, 0, 0, 0}},
		{"trailing bytes", append(SetComputeUnitLimitData(1), 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProcessInstructions([]ProgramInstruction{budgetInstruction(tt.data)}, allFeatures())
			assert.ErrorIs(t, err, ErrInvalidInstructionData)
		})
	}
}

func TestProcessInstructions_LoadedAccountsDataSizeLimit(t *testing.T) {
	t.Run("feature enabled", func(t *testing.T) {
		limits, err := ProcessInstructions([]ProgramInstruction{
			budgetInstruction(SetLoadedAccountsDataSizeLimitData(1024)),
		}, allFeatures())
		require.NoError(t, err)
		assert.Equal(t, uint32(1024), limits.LoadedAccountsDataSizeLimit)
	})

	t.Run("clamped to maximum", func(t *testing.T) {
		limits, err := ProcessInstructions([]ProgramInstruction{
			budgetInstruction(SetLoadedAccountsDataSizeLimitData(MaxLoadedAccountsDataSizeBytes + 1)),
		}, allFeatures())
		require.NoError(t, err)
		assert.Equal(t, MaxLoadedAccountsDataSizeBytes, limits.LoadedAccountsDataSizeLimit)
	})

	t.Run("feature disabled", func(t *testing.T) {
		_, err := ProcessInstructions([]ProgramInstruction{
			budgetInstruction(SetLoadedAccountsDataSizeLimitData(1024)),
		}, FeatureSet{})
		assert.ErrorIs(t, err, ErrInvalidInstructionData)
	})
}
