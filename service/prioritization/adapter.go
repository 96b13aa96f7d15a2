package prioritization

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/ranklabs/txrank/service/computebudget"
)

// SanitizedTransaction wraps a fully-sanitized legacy transaction. Sanitization
// (structural validation, signature checks) happens upstream; this wrapper only
// exposes the instruction list for priority extraction.
type SanitizedTransaction struct {
	tx *solana.Transaction
}

// NewSanitizedTransaction wraps a sanitized legacy transaction.
func NewSanitizedTransaction(tx *solana.Transaction) *SanitizedTransaction {
	return &SanitizedTransaction{tx: tx}
}

// ProgramInstructions returns the transaction's instructions paired with their
// resolved program ids, in original order.
func (s *SanitizedTransaction) ProgramInstructions() ([]computebudget.ProgramInstruction, error) {
	return programInstructions(&s.tx.Message)
}

// GetTransactionPriorityDetails derives the transaction's priority details.
// ok=false means the transaction supplies no usable priority signal.
func (s *SanitizedTransaction) GetTransactionPriorityDetails(roundComputeUnitPriceEnabled bool) (TransactionPriorityDetails, bool) {
	return getPriorityDetails(s, roundComputeUnitPriceEnabled)
}

// SanitizedVersionedTransaction wraps a sanitized transaction whose message may
// be versioned (v0 with address table lookups). Program ids are always static
// message keys, so priority extraction needs no lookup resolution.
type SanitizedVersionedTransaction struct {
	tx *solana.Transaction
}

// NewSanitizedVersionedTransaction wraps a sanitized versioned transaction.
func NewSanitizedVersionedTransaction(tx *solana.Transaction) *SanitizedVersionedTransaction {
	return &SanitizedVersionedTransaction{tx: tx}
}

// ProgramInstructions returns the message's instructions paired with their
// resolved program ids, in original order.
func (s *SanitizedVersionedTransaction) ProgramInstructions() ([]computebudget.ProgramInstruction, error) {
	return programInstructions(&s.tx.Message)
}

// GetTransactionPriorityDetails derives the transaction's priority details.
// ok=false means the transaction supplies no usable priority signal.
func (s *SanitizedVersionedTransaction) GetTransactionPriorityDetails(roundComputeUnitPriceEnabled bool) (TransactionPriorityDetails, bool) {
	return getPriorityDetails(s, roundComputeUnitPriceEnabled)
}

// programInstructions resolves each compiled instruction's program id against
// the message's static account keys.
func programInstructions(msg *solana.Message) ([]computebudget.ProgramInstruction, error) {
	out := make([]computebudget.ProgramInstruction, 0, len(msg.Instructions))
	for _, ix := range msg.Instructions {
		if int(ix.ProgramIDIndex) >= len(msg.AccountKeys) {
			return nil, fmt.Errorf("program id index %d out of range (%d account keys)", ix.ProgramIDIndex, len(msg.AccountKeys))
		}
		out = append(out, computebudget.ProgramInstruction{
			ProgramID:   msg.AccountKeys[ix.ProgramIDIndex],
			Instruction: ix,
		})
	}
	return out, nil
}
