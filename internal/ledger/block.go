// Package ledger implements the tamper-evident violation ledger synced from
// monitored devices.
//
// Each device keeps an append-only chain of violation blocks. Every block
// records the SHA-256 of its predecessor and carries a proof-of-work nonce,
// so editing or fabricating any past record requires redoing the work for
// that block and every block after it. The server never extends a chain;
// it only verifies chains submitted whole.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenesisPrevHash is the previousHash sentinel carried by the first block
// of every chain.
const GenesisPrevHash = "0"

// DefaultDifficulty is the proof-of-work difficulty applied when none is
// configured: the number of leading zero hex digits a block hash must have.
const DefaultDifficulty = 4

// Block is a single violation record in a device's chain. Field names mirror
// the wire format produced by the mobile client.
type Block struct {
	Index        int    `json:"index"`
	DeviceID     string `json:"deviceId"`
	AppName      string `json:"appName"`
	Keyword      string `json:"keyword"`
	Timestamp    int64  `json:"timestamp"` // milliseconds since epoch
	PreviousHash string `json:"previousHash"`
	Hash         string `json:"hash"`
	Nonce        int64  `json:"nonce"`
}

// HashBlock computes the canonical SHA-256 digest of a block's contents.
// The field order and ":" separator are fixed; the mobile client computes
// the same digest when mining.
func HashBlock(b *Block) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%s:%s:%s:%s:%d:%d",
		b.Index, b.PreviousHash,
		b.DeviceID, b.AppName, b.Keyword, b.Timestamp,
		b.Nonce,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// MeetsDifficulty reports whether hash starts with at least difficulty
// leading zero hex digits.
func MeetsDifficulty(hash string, difficulty int) bool {
	return strings.HasPrefix(hash, strings.Repeat("0", difficulty))
}
