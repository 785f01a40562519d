package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mrwong99/rollbot/internal/diceexpr"
	"github.com/mrwong99/rollbot/internal/storage"
	"github.com/mrwong99/rollbot/internal/tenantcfg"
)

// fakeStore is an in-memory Store used to exercise the actor without a
// database connection.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]tenantcfg.Config
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]tenantcfg.Config)}
}

func (s *fakeStore) key(clientType, clientID string) string { return clientType + "\x00" + clientID }

func (s *fakeStore) LoadOrInsertDefault(ctx context.Context, clientType, clientID string) (tenantcfg.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(clientType, clientID)
	if cfg, ok := s.rows[k]; ok {
		return cfg, nil
	}
	cfg := tenantcfg.New()
	s.rows[k] = cfg
	return cfg, nil
}

func (s *fakeStore) WriteChangeset(ctx context.Context, clientType, clientID string, cfg tenantcfg.Config, dirty tenantcfg.DirtyBits) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.key(clientType, clientID)] = cfg
	return nil
}

func newTestActor(t *testing.T) (*storage.Actor, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	persist := storage.NewPersistWorker(ctx, store, 8)
	actor := storage.NewActor(ctx, storage.Config{
		ClientType: "test",
		Persist:    persist,
		Shards:     2,
		CacheSize:  4,
		QueueSize:  8,
	})
	return actor, store
}

func TestActor_GetCommandPrefix_DefaultsOnFirstLoad(t *testing.T) {
	actor, _ := newTestActor(t)
	ctx := context.Background()

	prefix, err := actor.GetCommandPrefix(ctx, "alice")
	if err != nil {
		t.Fatalf("GetCommandPrefix: %v", err)
	}
	if prefix != tenantcfg.DefaultCommandPrefix {
		t.Errorf("prefix = %q, want default %q", prefix, tenantcfg.DefaultCommandPrefix)
	}
}

func TestActor_SetThenGetCommandPrefix(t *testing.T) {
	actor, _ := newTestActor(t)
	ctx := context.Background()

	if err := actor.SetCommandPrefix(ctx, "alice", "!!"); err != nil {
		t.Fatalf("SetCommandPrefix: %v", err)
	}
	prefix, err := actor.GetCommandPrefix(ctx, "alice")
	if err != nil {
		t.Fatalf("GetCommandPrefix: %v", err)
	}
	if prefix != "!!" {
		t.Errorf("prefix = %q, want %q", prefix, "!!")
	}
}

func TestActor_AddRollPrefix_RejectsDuplicate(t *testing.T) {
	actor, _ := newTestActor(t)
	ctx := context.Background()

	added, err := actor.AddRollPrefix(ctx, "bob", "r!")
	if err != nil || !added {
		t.Fatalf("first add: ok=%v err=%v", added, err)
	}
	added, err = actor.AddRollPrefix(ctx, "bob", "r!")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Error("duplicate add should report false")
	}
}

func TestActor_AddAndRemoveAlias(t *testing.T) {
	actor, _ := newTestActor(t)
	ctx := context.Background()
	expr := diceexpr.LabeledExpression{
		Expression: diceexpr.Expression{
			Tag:  diceexpr.ExprSimple,
			Term: &diceexpr.Term{Tag: diceexpr.TermConstant, Constant: 7},
		},
	}

	added, err := actor.AddAlias(ctx, "carol", "luck", expr)
	if err != nil || !added {
		t.Fatalf("add: ok=%v err=%v", added, err)
	}

	got, ok, err := actor.GetAlias(ctx, "carol", "luck")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.Equal(expr) {
		t.Errorf("got %+v, want %+v", got, expr)
	}

	removed, err := actor.RemoveAlias(ctx, "carol", "luck")
	if err != nil || !removed {
		t.Fatalf("remove: ok=%v err=%v", removed, err)
	}
	removed, err = actor.RemoveAlias(ctx, "carol", "luck")
	if err != nil {
		t.Fatalf("remove again: %v", err)
	}
	if removed {
		t.Error("removing an absent alias should report false")
	}
}

func TestActor_GetBundle_ResolvesOnlyPresentAliases(t *testing.T) {
	actor, _ := newTestActor(t)
	ctx := context.Background()
	expr := diceexpr.LabeledExpression{
		Expression: diceexpr.Expression{
			Tag:  diceexpr.ExprSimple,
			Term: &diceexpr.Term{Tag: diceexpr.TermConstant, Constant: 1},
		},
	}
	if _, err := actor.AddAlias(ctx, "dave", "atk", expr); err != nil {
		t.Fatalf("AddAlias: %v", err)
	}

	bundle, err := actor.GetBundle(ctx, "dave", []string{"atk", "missing"})
	if err != nil {
		t.Fatalf("GetBundle: %v", err)
	}
	if len(bundle.ResolvedAliases) != 1 || !bundle.ResolvedAliases[0].Equal(expr) {
		t.Errorf("ResolvedAliases = %+v, want exactly [%+v]", bundle.ResolvedAliases, expr)
	}
	if bundle.CommandPrefix != tenantcfg.DefaultCommandPrefix {
		t.Errorf("CommandPrefix = %q, want default", bundle.CommandPrefix)
	}
}

func TestActor_WritesPersistAcrossReloadsIntoStore(t *testing.T) {
	actor, store := newTestActor(t)
	ctx := context.Background()

	if err := actor.SetCommandPrefix(ctx, "erin", "$$"); err != nil {
		t.Fatalf("SetCommandPrefix: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		cfg, ok := store.rows[store.key("test", "erin")]
		store.mu.Unlock()
		if ok && cfg.CommandPrefix == "$$" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("write-back never reached the store within the deadline")
}
