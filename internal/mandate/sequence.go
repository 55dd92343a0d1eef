package mandate

import (
	"github.com/openbuilders/sepa-collector/internal/types"
)

// NextSequenceType decides the sequence type of the next instruction of a
// mandate from its pending amendment (nil if none) and the states of its
// earlier instructions.
func NextSequenceType(pending *types.Amendment, history []types.InstructionState) types.SequenceType {
	// Moving to another bank restarts the sequence.
	if pending != nil && pending.OtherBank {
		return types.SequenceFRST
	}

	for _, s := range history {
		if s.BatchStatus == types.StatusNew && s.BatchSequence == types.SequenceFRST {
			return types.SequenceUndetermined
		}
	}

	for _, s := range history {
		if s.BatchStatus != types.StatusProcessed {
			continue
		}

		// A reversal before settlement means the FRST never reached the
		// debtor bank.
		if !s.Reversed || !s.PreSettlement {
			return types.SequenceRCUR
		}
	}

	return types.SequenceFRST
}
