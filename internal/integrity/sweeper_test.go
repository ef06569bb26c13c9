package integrity

import (
	"context"
	"testing"
	"time"

	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/guardian/repository"
	"github.com/limitx/guardian/internal/ledger"
	"go.uber.org/zap"
)

const sweepDifficulty = 1

func seedRecord(t *testing.T, store *repository.MemoryStore, key string, blocks []ledger.Block, verified bool) {
	t.Helper()
	err := store.Save(context.Background(), &model.DeviceRecord{
		DeviceKey:         key,
		DeviceID:          "device-" + key,
		Blocks:            blocks,
		LastSync:          time.Now().UTC(),
		IntegrityVerified: verified,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func TestSweepAll_flagsTamperedRecord(t *testing.T) {
	store := repository.NewMemoryStore()
	miner := ledger.NewMiner(sweepDifficulty)

	good := miner.MineChain("d1", [][2]string{{"SYSTEM", "GENESIS"}, {"Chrome", "science"}}, 1700000000000, 60_000)
	seedRecord(t, store, "good", good, true)

	bad := miner.MineChain("d2", [][2]string{{"SYSTEM", "GENESIS"}, {"Chrome", "science"}}, 1700000000000, 60_000)
	bad[1].Keyword = "edited at rest"
	seedRecord(t, store, "bad", bad, true)

	var valid, invalid int
	sweeper := New(store, ledger.NewVerifier(sweepDifficulty), Config{}, zap.NewNop())
	sweeper.SetMetricsRecord(func(ok bool) {
		if ok {
			valid++
		} else {
			invalid++
		}
	})

	sweeper.SweepAll(context.Background())

	if valid != 1 || invalid != 1 {
		t.Fatalf("expected 1 valid and 1 invalid sweep, got %d/%d", valid, invalid)
	}

	rec, err := store.Load(context.Background(), "bad")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.IntegrityVerified {
		t.Fatal("tampered record must be marked unverified")
	}

	rec, err = store.Load(context.Background(), "good")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !rec.IntegrityVerified {
		t.Fatal("intact record must stay verified")
	}
}

func TestSweepAll_restoresVerdictAfterResync(t *testing.T) {
	store := repository.NewMemoryStore()
	miner := ledger.NewMiner(sweepDifficulty)

	// Marked unverified by an earlier sweep but the chain is fine now,
	// as happens after the device resyncs a clean chain.
	good := miner.MineChain("d1", [][2]string{{"SYSTEM", "GENESIS"}}, 1700000000000, 60_000)
	seedRecord(t, store, "key", good, false)

	sweeper := New(store, ledger.NewVerifier(sweepDifficulty), Config{}, zap.NewNop())
	sweeper.SweepAll(context.Background())

	rec, err := store.Load(context.Background(), "key")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !rec.IntegrityVerified {
		t.Fatal("clean chain must be marked verified again")
	}
}

// resyncDuringSweepStore commits a fresh chain for a key right after the
// sweeper loads its record, reproducing a sync that lands mid-sweep.
type resyncDuringSweepStore struct {
	*repository.MemoryStore
	key   string
	fresh []ledger.Block
	done  bool
}

func (s *resyncDuringSweepStore) Load(ctx context.Context, deviceKey string) (*model.DeviceRecord, error) {
	rec, err := s.MemoryStore.Load(ctx, deviceKey)
	if err != nil {
		return nil, err
	}
	if deviceKey == s.key && !s.done {
		s.done = true
		if err := s.MemoryStore.Save(ctx, &model.DeviceRecord{
			DeviceKey:         s.key,
			DeviceID:          "device-" + s.key,
			Blocks:            s.fresh,
			LastSync:          time.Now().UTC(),
			IntegrityVerified: true,
		}); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func TestSweepAll_keepsChainSyncedMidSweep(t *testing.T) {
	mem := repository.NewMemoryStore()
	miner := ledger.NewMiner(sweepDifficulty)

	stale := miner.MineChain("d1", [][2]string{{"SYSTEM", "GENESIS"}}, 1700000000000, 60_000)
	stale[0].Keyword = "tampered"
	seedRecord(t, mem, "key", stale, true)

	fresh := miner.MineChain("d1", [][2]string{{"SYSTEM", "GENESIS"}, {"Chrome", "science"}}, 1700000100000, 60_000)
	store := &resyncDuringSweepStore{MemoryStore: mem, key: "key", fresh: fresh}

	sweeper := New(store, ledger.NewVerifier(sweepDifficulty), Config{}, zap.NewNop())
	sweeper.SweepAll(context.Background())

	rec, err := mem.Load(context.Background(), "key")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rec.Blocks) != 2 || rec.Blocks[1].Keyword != "science" {
		t.Fatalf("freshly synced chain was overwritten: %d blocks", len(rec.Blocks))
	}
}

func TestSweepOne_emptyStore(t *testing.T) {
	sweeper := New(repository.NewMemoryStore(), ledger.NewVerifier(sweepDifficulty), Config{}, zap.NewNop())
	sweeper.SweepAll(context.Background())
}
