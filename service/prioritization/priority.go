// Package prioritization derives a transaction's scheduling priority and
// compute unit ceiling from its compute budget directives.
//
// The scheduler ranks pending transactions by the compute unit price they
// declare; the compute unit limit bounds how much block capacity each one may
// claim. This package produces that (priority, limit) pair for any transaction
// representation that can enumerate its instructions.
package prioritization

import (
	"github.com/ranklabs/txrank/service/computebudget"
)

// TransactionPriorityDetails is the derived priority snapshot for one
// transaction. It carries no reference to the transaction it came from and
// compares by value.
type TransactionPriorityDetails struct {
	// Priority is the declared compute unit price in micro-lamports, or 0
	// when the transaction declares none.
	Priority uint64

	// ComputeUnitLimit is the maximum compute units the transaction may
	// consume, explicit or defaulted.
	ComputeUnitLimit uint64
}

// InstructionLister yields a transaction's instructions together with their
// resolved program ids, in original instruction order.
type InstructionLister interface {
	ProgramInstructions() ([]computebudget.ProgramInstruction, error)
}

// ExtractPriorityDetails scans the given instructions for compute budget
// directives and resolves priority details, applying defaults when directives
// are absent. It reports ok=false when any budget directive is malformed; a
// transaction with unresolvable details supplies no usable priority signal
// and the caller applies its own fallback.
//
// roundComputeUnitPriceEnabled is reserved for a future rounding policy and
// currently has no effect.
func ExtractPriorityDetails(instructions []computebudget.ProgramInstruction, roundComputeUnitPriceEnabled bool) (TransactionPriorityDetails, bool) {
	_ = roundComputeUnitPriceEnabled

	features := computebudget.FeatureSet{
		AddSetLoadedAccountsDataSizeLimit: true,
	}

	limits, err := computebudget.ProcessInstructions(instructions, features)
	if err != nil {
		return TransactionPriorityDetails{}, false
	}

	return TransactionPriorityDetails{
		Priority:         limits.ComputeUnitPrice,
		ComputeUnitLimit: uint64(limits.ComputeUnitLimit),
	}, true
}

// getPriorityDetails implements the extraction once for every representation
// that can list its instructions.
func getPriorityDetails(lister InstructionLister, roundComputeUnitPriceEnabled bool) (TransactionPriorityDetails, bool) {
	instructions, err := lister.ProgramInstructions()
	if err != nil {
		return TransactionPriorityDetails{}, false
	}
	return ExtractPriorityDetails(instructions, roundComputeUnitPriceEnabled)
}
