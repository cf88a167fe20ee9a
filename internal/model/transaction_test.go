package model

import (
	"testing"

	"github.com/google/uuid"
)

func TestUserNumAndInvolves(t *testing.T) {
	user1 := uuid.New()
	user2 := uuid.New()
	stranger := uuid.New()

	tr := NewTransaction(user1, user2, []uuid.UUID{uuid.New()}, DirectionOneWay, KindVirtual, nil)

	if got := tr.UserNum(user1); got != 1 {
		t.Errorf("UserNum(user1) = %d, want 1", got)
	}
	if got := tr.UserNum(user2); got != 2 {
		t.Errorf("UserNum(user2) = %d, want 2", got)
	}
	if got := tr.UserNum(stranger); got != 0 {
		t.Errorf("UserNum(stranger) = %d, want 0", got)
	}
	if !tr.Involves(user1) || !tr.Involves(user2) {
		t.Error("Involves should be true for both parties")
	}
	if tr.Involves(stranger) {
		t.Error("Involves should be false for a stranger")
	}
}

func TestStatusSlots(t *testing.T) {
	user1 := uuid.New()
	user2 := uuid.New()
	tr := NewTransaction(user1, user2, []uuid.UUID{uuid.New()}, DirectionOneWay, KindVirtual, nil)

	if tr.Status != StatusPending || tr.StatusUser1 != StatusPending || tr.StatusUser2 != StatusPending {
		t.Fatal("new transaction should start fully pending")
	}

	if !tr.SetStatusOf(user1, StatusConfirmed) {
		t.Fatal("SetStatusOf(user1) should succeed")
	}
	if tr.StatusOf(user1) != StatusConfirmed {
		t.Errorf("StatusOf(user1) = %s, want confirmed", tr.StatusOf(user1))
	}
	if tr.StatusOf(user2) != StatusPending {
		t.Errorf("user2 slot moved unexpectedly: %s", tr.StatusOf(user2))
	}
	if tr.SetStatusOf(uuid.New(), StatusConfirmed) {
		t.Error("SetStatusOf for a stranger should report false")
	}
}

func TestOwnedAndDesiredItems(t *testing.T) {
	user1 := uuid.New()
	user2 := uuid.New()
	item1 := uuid.New()
	item2 := uuid.New()

	oneWay := NewTransaction(user1, user2, []uuid.UUID{item1}, DirectionOneWay, KindPermanent, []Meeting{NewMeeting("a", "b", "c")})

	if got, ok := oneWay.OwnedItem(user1); !ok || got != item1 {
		t.Errorf("one-way OwnedItem(user1) = %v, %v; want %v, true", got, ok, item1)
	}
	if _, ok := oneWay.OwnedItem(user2); ok {
		t.Error("one-way: user2 owns nothing")
	}
	if got, ok := oneWay.DesiredItem(user2); !ok || got != item1 {
		t.Errorf("one-way DesiredItem(user2) = %v, %v; want %v, true", got, ok, item1)
	}
	if _, ok := oneWay.DesiredItem(user1); ok {
		t.Error("one-way: user1 desires nothing")
	}

	twoWay := NewTransaction(user1, user2, []uuid.UUID{item1, item2}, DirectionTwoWay, KindPermanent, []Meeting{NewMeeting("a", "b", "c")})

	if got, ok := twoWay.OwnedItem(user2); !ok || got != item2 {
		t.Errorf("two-way OwnedItem(user2) = %v, %v; want %v, true", got, ok, item2)
	}
	if got, ok := twoWay.DesiredItem(user1); !ok || got != item2 {
		t.Errorf("two-way DesiredItem(user1) = %v, %v; want %v, true", got, ok, item2)
	}
}

func TestTransactionSnapshot(t *testing.T) {
	user1 := uuid.New()
	user2 := uuid.New()
	item := uuid.New()
	tr := NewTransaction(user1, user2, []uuid.UUID{item}, DirectionOneWay, KindPermanent,
		[]Meeting{NewMeeting("library", "2026-09-05", "14:00")})

	snap := tr.Snapshot()
	if snap.ID != tr.ID || snap.Status != StatusPending || snap.Kind != KindPermanent {
		t.Errorf("snapshot fields lost: %+v", snap)
	}

	// Later writes to the live transaction must not show up in the snapshot.
	tr.SetStatusOf(user1, StatusConfirmed)
	tr.Status = StatusConfirmed
	tr.Meetings[0].SetField("location", "cafe")

	if snap.StatusUser1 != StatusPending || snap.Status != StatusPending {
		t.Error("snapshot should be decoupled from later status writes")
	}
	if snap.Meetings[0].Location != "library" {
		t.Error("snapshot meetings should be decoupled from later edits")
	}
}

func TestTradingUserClone(t *testing.T) {
	u := NewTradingUser("alice", "secret", "Toronto")
	item := uuid.New()
	u.AddToInventory(item)
	u.History.RecordTradeWith("bob")

	c := u.Clone()
	if c.Username != "alice" || !c.HasInInventory(item) || c.History.TradeCounts["bob"] != 1 {
		t.Errorf("clone fields lost: %+v", c)
	}

	u.AddToInventory(uuid.New())
	u.AddToWishlist(uuid.New())
	u.History.RecordTradeWith("bob")
	u.History.Archive(uuid.New())

	if len(c.Inventory) != 1 || len(c.Wishlist) != 0 {
		t.Error("clone lists should be decoupled from later writes")
	}
	if c.History.TradeCounts["bob"] != 1 || len(c.History.Archived) != 0 {
		t.Error("clone history should be decoupled from later writes")
	}
}

func TestMeetingEditQuota(t *testing.T) {
	m := NewMeeting("library", "2026-09-01", "14:00")

	if !m.CanEdit(1) || !m.CanEdit(2) {
		t.Fatal("fresh meeting should be editable by both users")
	}
	if m.CanEdit(0) || m.CanEdit(3) {
		t.Error("CanEdit should reject user numbers outside 1 and 2")
	}

	for i := 0; i < DefaultMaxMeetingEdits; i++ {
		if !m.CanEdit(1) {
			t.Fatalf("user 1 should still have quota at edit %d", i)
		}
		m.RecordEdit(1)
	}
	if m.CanEdit(1) {
		t.Error("user 1 quota should be exhausted")
	}
	if !m.CanEdit(2) {
		t.Error("user 2 quota is independent and should be untouched")
	}
}

func TestMeetingSetField(t *testing.T) {
	m := NewMeeting("library", "2026-09-01", "14:00")

	if !m.SetField("location", "cafe") {
		t.Error("location should be a known field")
	}
	if !m.SetField("date", "2026-09-02") || !m.SetField("time", "15:00") {
		t.Error("date and time should be known fields")
	}
	if m.Location != "cafe" || m.Date != "2026-09-02" || m.Time != "15:00" {
		t.Errorf("fields not applied: %+v", m)
	}
	if m.SetField("venue", "park") {
		t.Error("unknown field should report false")
	}
}

func TestParseAction(t *testing.T) {
	for _, raw := range []string{
		"confirm_meeting_details", "cancel", "confirm_meetup",
		"meetup_incomplete", "item_returned", "item_not_returned", "edited",
	} {
		if _, ok := ParseAction(raw); !ok {
			t.Errorf("ParseAction(%q) should succeed", raw)
		}
	}
	if _, ok := ParseAction("approve"); ok {
		t.Error("ParseAction should reject unknown actions")
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []TransactionStatus{StatusCompleted, StatusIncomplete, StatusNeverReturned, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []TransactionStatus{StatusPending, StatusConfirmed, StatusTraded} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestKindSingleMeeting(t *testing.T) {
	if !KindPermanent.SingleMeeting() || !KindVirtual.SingleMeeting() {
		t.Error("permanent and virtual exchanges conclude at the first meeting")
	}
	if KindTemporary.SingleMeeting() {
		t.Error("temporary exchanges need a return meeting")
	}
}
