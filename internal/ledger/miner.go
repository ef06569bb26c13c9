package ledger

// Miner produces proof-of-work blocks the same way the mobile client does.
// The server never mines violation records; the miner exists for the CLI
// (simulating a device) and for tests that need valid chains.
type Miner struct {
	difficulty int
}

// NewMiner creates a Miner. difficulty <= 0 selects DefaultDifficulty.
func NewMiner(difficulty int) *Miner {
	if difficulty <= 0 {
		difficulty = DefaultDifficulty
	}
	return &Miner{difficulty: difficulty}
}

// Mine builds the next block after prev and grinds the nonce until the hash
// meets the difficulty. prev == nil produces the genesis block with the "0"
// sentinel. The search is unbounded but terminates quickly at the default
// difficulty of 4 hex digits (~32k attempts on average).
func (m *Miner) Mine(prev *Block, deviceID, appName, keyword string, timestamp int64) Block {
	b := Block{
		Index:        0,
		DeviceID:     deviceID,
		AppName:      appName,
		Keyword:      keyword,
		Timestamp:    timestamp,
		PreviousHash: GenesisPrevHash,
	}
	if prev != nil {
		b.Index = prev.Index + 1
		b.PreviousHash = prev.Hash
	}

	for nonce := int64(0); ; nonce++ {
		b.Nonce = nonce
		b.Hash = HashBlock(&b)
		if MeetsDifficulty(b.Hash, m.difficulty) {
			return b
		}
	}
}

// MineChain mines n blocks for deviceID, one event per entry in events,
// spacing timestamps stepMillis apart starting at startMillis. Each event is
// an (appName, keyword) pair.
func (m *Miner) MineChain(deviceID string, events [][2]string, startMillis, stepMillis int64) []Block {
	blocks := make([]Block, 0, len(events))
	var prev *Block
	for i, ev := range events {
		b := m.Mine(prev, deviceID, ev[0], ev[1], startMillis+int64(i)*stepMillis)
		blocks = append(blocks, b)
		prev = &blocks[len(blocks)-1]
	}
	return blocks
}
