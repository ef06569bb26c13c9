package ledger

import "fmt"

// IntegrityCode identifies the first chain violation found by Verify.
type IntegrityCode string

const (
	// CodeGenesisMismatch: the first block's previousHash is not the "0" sentinel.
	CodeGenesisMismatch IntegrityCode = "GENESIS_MISMATCH"
	// CodeHashLinkBroken: a block's previousHash does not equal its predecessor's hash.
	CodeHashLinkBroken IntegrityCode = "HASH_LINK_BROKEN"
	// CodeHashMismatch: a block's stored hash does not match its recomputed digest.
	CodeHashMismatch IntegrityCode = "HASH_MISMATCH"
	// CodeDifficultyNotMet: a block's hash lacks the required leading zero digits.
	CodeDifficultyNotMet IntegrityCode = "DIFFICULTY_NOT_MET"
)

// IntegrityError describes why a submitted chain was rejected. A single bad
// block invalidates the whole chain; Index is the offending block.
type IntegrityError struct {
	Code  IntegrityCode
	Index int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity: %s at block %d", e.Code, e.Index)
}

// Verifier checks chain integrity and proof-of-work. It is stateless and
// safe for concurrent use.
type Verifier struct {
	difficulty int
}

// NewVerifier creates a Verifier. difficulty <= 0 selects DefaultDifficulty.
func NewVerifier(difficulty int) *Verifier {
	if difficulty <= 0 {
		difficulty = DefaultDifficulty
	}
	return &Verifier{difficulty: difficulty}
}

// Difficulty returns the configured leading-zero requirement.
func (v *Verifier) Difficulty() int { return v.difficulty }

// Verify walks the chain and returns nil if it is intact, or an
// *IntegrityError for the first violation found. An empty chain is valid.
//
// Checks, in order, per block: genesis sentinel (block 0 only), hash link to
// the predecessor, recomputed SHA-256 digest, proof-of-work difficulty.
func (v *Verifier) Verify(blocks []Block) error {
	if len(blocks) == 0 {
		return nil
	}

	for i := range blocks {
		b := &blocks[i]

		if i == 0 {
			if b.PreviousHash != GenesisPrevHash {
				return &IntegrityError{Code: CodeGenesisMismatch, Index: 0}
			}
		} else if b.PreviousHash != blocks[i-1].Hash {
			return &IntegrityError{Code: CodeHashLinkBroken, Index: b.Index}
		}

		if HashBlock(b) != b.Hash {
			return &IntegrityError{Code: CodeHashMismatch, Index: b.Index}
		}
		if !MeetsDifficulty(b.Hash, v.difficulty) {
			return &IntegrityError{Code: CodeDifficultyNotMet, Index: b.Index}
		}
	}
	return nil
}
