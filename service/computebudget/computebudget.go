// Package computebudget decodes the Compute Budget program's directives from
// a transaction's instruction list and resolves them into effective limits.
//
// The Compute Budget program performs no on-chain logic; its instructions
// configure the transaction's own resource budget (compute unit limit,
// compute unit price, heap size). Schedulers use the resolved limits to rank
// transactions and pack blocks.
package computebudget

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the well-known Compute Budget program address.
var ProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Instruction discriminators. Each directive's payload is the discriminator
// byte followed by a little-endian value.
const (
	instructionRequestUnitsDeprecated         uint8 = 0
	instructionRequestHeapFrame               uint8 = 1
	instructionSetComputeUnitLimit            uint8 = 2
	instructionSetComputeUnitPrice            uint8 = 3
	instructionSetLoadedAccountsDataSizeLimit uint8 = 4
)

const (
	// DefaultInstructionComputeUnitLimit is the per-instruction compute
	// allowance applied when a transaction declares no explicit limit.
	DefaultInstructionComputeUnitLimit uint32 = 200_000

	// MaxComputeUnitLimit caps the compute unit limit of a single transaction.
	MaxComputeUnitLimit uint32 = 1_400_000

	// MinHeapFrameBytes and MaxHeapFrameBytes bound a requested heap frame.
	// Requests must also be a multiple of 1 KiB.
	MinHeapFrameBytes uint32 = 32 * 1024
	MaxHeapFrameBytes uint32 = 256 * 1024

	// MaxLoadedAccountsDataSizeBytes caps the total size of accounts a
	// transaction may load. It is also the default when not declared.
	MaxLoadedAccountsDataSizeBytes uint32 = 64 * 1024 * 1024
)

// ErrInvalidInstructionData is returned when a compute budget instruction
// carries an unknown discriminator or a malformed payload. A transaction with
// any malformed budget directive has no derivable limits.
var ErrInvalidInstructionData = errors.New("invalid compute budget instruction data")

// FeatureSet describes which gated directives the decoder accepts.
type FeatureSet struct {
	// AddSetLoadedAccountsDataSizeLimit enables the SetLoadedAccountsDataSizeLimit
	// directive. When false, that directive is treated as invalid data.
	AddSetLoadedAccountsDataSizeLimit bool
}

// ProgramInstruction pairs a compiled instruction with its resolved program id.
// Transactions yield these in original instruction order.
type ProgramInstruction struct {
	ProgramID   solana.PublicKey
	Instruction solana.CompiledInstruction
}

// Limits is the resolved compute budget for one transaction.
type Limits struct {
	// ComputeUnitPrice is the declared price in micro-lamports per compute
	// unit, or 0 when undeclared.
	ComputeUnitPrice uint64

	// ComputeUnitLimit is the declared limit clamped to MaxComputeUnitLimit,
	// or the scaled default when undeclared.
	ComputeUnitLimit uint32

	// HeapBytes is the requested heap frame size, or 0 when undeclared.
	HeapBytes uint32

	// LoadedAccountsDataSizeLimit is the declared accounts data size limit
	// clamped to MaxLoadedAccountsDataSizeBytes, or the maximum when
	// undeclared.
	LoadedAccountsDataSizeLimit uint32
}

// ProcessInstructions scans a transaction's instructions for compute budget
// directives and resolves the effective limits, applying defaults for absent
// directives. When the same directive appears more than once, the later
// occurrence wins.
//
// Any malformed or unrecognized compute budget payload fails the whole
// resolution; there is no partial result.
func ProcessInstructions(instructions []ProgramInstruction, features FeatureSet) (Limits, error) {
	var (
		requestedLimit  *uint32
		requestedPrice  *uint64
		requestedHeap   *uint32
		requestedLoaded *uint32
		numNonBudget    uint32
	)

	for _, pi := range instructions {
		if !pi.ProgramID.Equals(ProgramID) {
			numNonBudget++
			continue
		}

		data := pi.Instruction.Data
		if len(data) == 0 {
			return Limits{}, fmt.Errorf("%w: empty payload", ErrInvalidInstructionData)
		}

		switch data[0] {
		case instructionRequestUnitsDeprecated:
			return Limits{}, fmt.Errorf("%w: deprecated RequestUnits directive", ErrInvalidInstructionData)

		case instructionRequestHeapFrame:
			bytes, err := decodeUint32(data)
			if err != nil {
				return Limits{}, err
			}
			if bytes < MinHeapFrameBytes || bytes > MaxHeapFrameBytes || bytes%1024 != 0 {
				return Limits{}, fmt.Errorf("%w: heap frame of %d bytes out of range", ErrInvalidInstructionData, bytes)
			}
			requestedHeap = &bytes

		case instructionSetComputeUnitLimit:
			units, err := decodeUint32(data)
			if err != nil {
				return Limits{}, err
			}
			requestedLimit = &units

		case instructionSetComputeUnitPrice:
			price, err := decodeUint64(data)
			if err != nil {
				return Limits{}, err
			}
			requestedPrice = &price

		case instructionSetLoadedAccountsDataSizeLimit:
			if !features.AddSetLoadedAccountsDataSizeLimit {
				return Limits{}, fmt.Errorf("%w: SetLoadedAccountsDataSizeLimit not enabled", ErrInvalidInstructionData)
			}
			size, err := decodeUint32(data)
			if err != nil {
				return Limits{}, err
			}
			requestedLoaded = &size

		default:
			return Limits{}, fmt.Errorf("%w: unknown discriminator %d", ErrInvalidInstructionData, data[0])
		}
	}

	limits := Limits{
		LoadedAccountsDataSizeLimit: MaxLoadedAccountsDataSizeBytes,
	}

	if requestedLimit != nil {
		limits.ComputeUnitLimit = min(*requestedLimit, MaxComputeUnitLimit)
	} else {
		limits.ComputeUnitLimit = min(numNonBudget*DefaultInstructionComputeUnitLimit, MaxComputeUnitLimit)
	}
	if requestedPrice != nil {
		limits.ComputeUnitPrice = *requestedPrice
	}
	if requestedHeap != nil {
		limits.HeapBytes = *requestedHeap
	}
	if requestedLoaded != nil {
		limits.LoadedAccountsDataSizeLimit = min(*requestedLoaded, MaxLoadedAccountsDataSizeBytes)
	}

	return limits, nil
}

// decodeUint32 decodes a directive payload carrying a little-endian u32.
// The payload must be exactly the discriminator byte plus four value bytes.
func decodeUint32(data []byte) (uint32, error) {
	if len(data) != 5 {
		return 0, fmt.Errorf("%w: expected 5 bytes, got %d", ErrInvalidInstructionData, len(data))
	}
	return binary.LittleEndian.Uint32(data[1:]), nil
}

// decodeUint64 decodes a directive payload carrying a little-endian u64.
func decodeUint64(data []byte) (uint64, error) {
	if len(data) != 9 {
		return 0, fmt.Errorf("%w: expected 9 bytes, got %d", ErrInvalidInstructionData, len(data))
	}
	return binary.LittleEndian.Uint64(data[1:]), nil
}

// SetComputeUnitLimitData builds the payload for a SetComputeUnitLimit
// directive. Useful for constructing transactions in tests and tooling.
func SetComputeUnitLimitData(units uint32) []byte {
	data := make([]byte, 5)
	data[0] = instructionSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return data
}

// SetComputeUnitPriceData builds the payload for a SetComputeUnitPrice
// directive. The price is in micro-lamports per compute unit.
func SetComputeUnitPriceData(microLamports uint64) []byte {
	data := make([]byte, 9)
	data[0] = instructionSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return data
}

// RequestHeapFrameData builds the payload for a RequestHeapFrame directive.
func RequestHeapFrameData(bytes uint32) []byte {
	data := make([]byte, 5)
	data[0] = instructionRequestHeapFrame
	binary.LittleEndian.PutUint32(data[1:], bytes)
	return data
}

// SetLoadedAccountsDataSizeLimitData builds the payload for a
// SetLoadedAccountsDataSizeLimit directive.
func SetLoadedAccountsDataSizeLimitData(bytes uint32) []byte {
	data := make([]byte, 5)
	data[0] = instructionSetLoadedAccountsDataSizeLimit
	binary.LittleEndian.PutUint32(data[1:], bytes)
	return data
}
