package repository

import (
	"context"
	"path/filepath"
	"testing"

	"tradehub-rest-api/internal/model"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	alice := model.NewTradingUser("alice", "secret", "Toronto")
	alice.Inventory = []uuid.UUID{uuid.New()}
	alice.History.NumItemsLended = 2
	alice.History.RecordTradeWith("bob")
	bob := model.NewTradingUser("bob", "secret", "Montreal")
	bob.Flagged = true

	if err := store.SaveUser(ctx, alice); err != nil {
		t.Fatalf("save alice: %v", err)
	}
	if err := store.SaveUser(ctx, bob); err != nil {
		t.Fatalf("save bob: %v", err)
	}

	tr := model.NewTransaction(alice.ID, bob.ID, []uuid.UUID{alice.Inventory[0]},
		model.DirectionOneWay, model.KindPermanent,
		[]model.Meeting{model.NewMeeting("library", "2026-09-05", "14:00")})
	if err := store.SaveTransaction(ctx, tr); err != nil {
		t.Fatalf("save transaction: %v", err)
	}

	users, transactions, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(users) != 2 || len(transactions) != 1 {
		t.Fatalf("loaded %d users, %d transactions; want 2, 1", len(users), len(transactions))
	}

	byName := make(map[string]*model.TradingUser, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	gotAlice, ok := byName["alice"]
	if !ok {
		t.Fatal("alice missing from load")
	}
	if gotAlice.ID != alice.ID || gotAlice.City != "Toronto" {
		t.Errorf("alice fields lost: %+v", gotAlice)
	}
	if len(gotAlice.Inventory) != 1 || gotAlice.Inventory[0] != alice.Inventory[0] {
		t.Errorf("alice inventory lost: %v", gotAlice.Inventory)
	}
	if gotAlice.History == nil || gotAlice.History.NumItemsLended != 2 || gotAlice.History.TradeCounts["bob"] != 1 {
		t.Errorf("alice history lost: %+v", gotAlice.History)
	}
	if !byName["bob"].Flagged {
		t.Error("bob's flag should survive a round trip")
	}

	gotTr := transactions[0]
	if gotTr.ID != tr.ID || gotTr.Kind != model.KindPermanent || gotTr.Status != model.StatusPending {
		t.Errorf("transaction fields lost: %+v", gotTr)
	}
	if len(gotTr.Meetings) != 1 || gotTr.Meetings[0].Location != "library" {
		t.Errorf("meetings lost: %v", gotTr.Meetings)
	}
}

func TestSQLiteStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	u := model.NewTradingUser("alice", "secret", "Toronto")
	if err := store.SaveUser(ctx, u); err != nil {
		t.Fatalf("save: %v", err)
	}
	u.City = "Montreal"
	if err := store.SaveUser(ctx, u); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	users, _, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("loaded %d users, want 1", len(users))
	}
	if users[0].City != "Montreal" {
		t.Errorf("city = %s, want Montreal", users[0].City)
	}
}

func TestSQLiteStoreDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tr := model.NewTransaction(uuid.New(), uuid.New(), []uuid.UUID{uuid.New()},
		model.DirectionOneWay, model.KindVirtual, nil)
	if err := store.SaveTransaction(ctx, tr); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.DeleteTransaction(ctx, tr.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteTransaction(ctx, tr.ID); err != nil {
		t.Errorf("deleting a missing row is a no-op, got %v", err)
	}

	_, transactions, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(transactions) != 0 {
		t.Errorf("loaded %d transactions, want 0", len(transactions))
	}
}

func TestSQLiteStoreStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SaveUser(ctx, model.NewTradingUser("alice", "secret", "Toronto")); err != nil {
		t.Fatalf("save: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["backend"] != "sqlite" {
		t.Errorf("backend = %v, want sqlite", stats["backend"])
	}
	if stats["users"] != int64(1) || stats["transactions"] != int64(0) {
		t.Errorf("counts = %v/%v, want 1/0", stats["users"], stats["transactions"])
	}
}
