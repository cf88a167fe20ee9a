package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the status of a transaction as a whole, or of one
// user's slot within it.
type TransactionStatus string

const (
	StatusPending       TransactionStatus = "pending"
	StatusConfirmed     TransactionStatus = "confirmed"
	StatusTraded        TransactionStatus = "traded"
	StatusCompleted     TransactionStatus = "completed"
	StatusIncomplete    TransactionStatus = "incomplete"
	StatusNeverReturned TransactionStatus = "never_returned"
	StatusCancelled     TransactionStatus = "cancelled"
)

// IsTerminal reports whether no further status transition is possible.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusIncomplete, StatusNeverReturned, StatusCancelled:
		return true
	}
	return false
}

// TransactionKind determines how many meetings a transaction needs and
// whether ownership transfer is final.
type TransactionKind string

const (
	// KindPermanent transfers ownership after a single meeting.
	KindPermanent TransactionKind = "permanent"
	// KindTemporary lends items after the first meeting and returns them
	// after a second.
	KindTemporary TransactionKind = "temporary"
	// KindVirtual transfers ownership with no physical meetup.
	KindVirtual TransactionKind = "virtual"
)

// SingleMeeting reports whether the exchange concludes at the first meeting
// (or, for virtual transactions, with no meeting at all).
func (k TransactionKind) SingleMeeting() bool {
	return k == KindPermanent || k == KindVirtual
}

// TransactionDirection distinguishes a one-item donation from a two-item
// swap. It is stored explicitly instead of being inferred from the item
// count.
type TransactionDirection string

const (
	// DirectionOneWay moves a single item from user1 to user2.
	DirectionOneWay TransactionDirection = "one_way"
	// DirectionTwoWay exchanges one item per user.
	DirectionTwoWay TransactionDirection = "two_way"
)

// TransactionAction is an intent a user registers against their own status
// slot on a transaction.
type TransactionAction string

const (
	ActionConfirmMeetingDetails TransactionAction = "confirm_meeting_details"
	ActionCancel                TransactionAction = "cancel"
	ActionConfirmMeetup         TransactionAction = "confirm_meetup"
	ActionMeetupIncomplete      TransactionAction = "meetup_incomplete"
	ActionItemReturned          TransactionAction = "item_returned"
	ActionItemNotReturned       TransactionAction = "item_not_returned"
	ActionEdited                TransactionAction = "edited"
)

// ParseAction validates a raw action string.
func ParseAction(s string) (TransactionAction, bool) {
	switch a := TransactionAction(s); a {
	case ActionConfirmMeetingDetails, ActionCancel, ActionConfirmMeetup,
		ActionMeetupIncomplete, ActionItemReturned, ActionItemNotReturned,
		ActionEdited:
		return a, true
	}
	return "", false
}

// DefaultMaxMeetingEdits is the shared per-user edit quota for a meeting.
const DefaultMaxMeetingEdits = 3

// Meeting is a single proposed time and place for one leg of an exchange.
// Location, date and time are independent free-text fields; no cross-field
// validation happens at this layer.
type Meeting struct {
	Location string `json:"location"`
	Date     string `json:"date"`
	Time     string `json:"time"`

	// Edits counts finalized edits per user slot (index 0 = user1).
	Edits    [2]int `json:"edits"`
	MaxEdits int    `json:"max_edits"`
}

// NewMeeting creates a meeting with the default edit quota.
func NewMeeting(location, date, timeOfDay string) Meeting {
	return Meeting{
		Location: location,
		Date:     date,
		Time:     timeOfDay,
		MaxEdits: DefaultMaxMeetingEdits,
	}
}

// CanEdit reports whether the given user (1 or 2) still has edit quota left.
func (m *Meeting) CanEdit(userNum int) bool {
	if userNum != 1 && userNum != 2 {
		return false
	}
	return m.Edits[userNum-1] < m.MaxEdits
}

// RecordEdit counts one finalized edit against the given user's quota.
// Counting is a separate step from applying the field change so a user can
// propose a value without it counting until they finalize it.
func (m *Meeting) RecordEdit(userNum int) {
	if userNum == 1 || userNum == 2 {
		m.Edits[userNum-1]++
	}
}

// SetField applies a single-field change. Returns false for an unknown field.
func (m *Meeting) SetField(field, value string) bool {
	switch field {
	case "location":
		m.Location = value
	case "date":
		m.Date = value
	case "time":
		m.Time = value
	default:
		return false
	}
	return true
}

// Transaction is the aggregate of two users, one or two item legs, zero to
// two meetings, and two independent per-user status slots. By convention
// User2 is the user who initiated the transaction, Items[0] is owned by
// User1, and Items[1] (two-way only) is owned by User2.
type Transaction struct {
	ID        uuid.UUID            `json:"id"`
	User1     uuid.UUID            `json:"user1"`
	User2     uuid.UUID            `json:"user2"`
	Items     []uuid.UUID          `json:"items"`
	Direction TransactionDirection `json:"direction"`
	Kind      TransactionKind      `json:"kind"`
	Meetings  []Meeting            `json:"meetings"`

	StatusUser1 TransactionStatus `json:"status_user1"`
	StatusUser2 TransactionStatus `json:"status_user2"`
	Status      TransactionStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`

	mu sync.Mutex
}

// NewTransaction creates a pending transaction between two users.
func NewTransaction(user1, user2 uuid.UUID, items []uuid.UUID, direction TransactionDirection, kind TransactionKind, meetings []Meeting) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		User1:       user1,
		User2:       user2,
		Items:       items,
		Direction:   direction,
		Kind:        kind,
		Meetings:    meetings,
		StatusUser1: StatusPending,
		StatusUser2: StatusPending,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// Lock acquires the transaction's mutex. Every write of a status slot or
// meeting field, and the overall-status recompute that follows it, happens
// under this lock.
func (t *Transaction) Lock() { t.mu.Lock() }

// Unlock releases the transaction's mutex.
func (t *Transaction) Unlock() { t.mu.Unlock() }

// Snapshot returns a copy of the transaction taken under its lock, with its
// own item and meeting slices. Render the snapshot, not the live aggregate:
// the parties keep writing status slots under the lock while a reader
// encodes.
func (t *Transaction) Snapshot() *Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	return &Transaction{
		ID:          t.ID,
		User1:       t.User1,
		User2:       t.User2,
		Items:       append([]uuid.UUID(nil), t.Items...),
		Direction:   t.Direction,
		Kind:        t.Kind,
		Meetings:    append([]Meeting(nil), t.Meetings...),
		StatusUser1: t.StatusUser1,
		StatusUser2: t.StatusUser2,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
	}
}

// UserNum resolves a user id to its slot (1 or 2) within the transaction.
// Returns 0 when the user is not a party to it.
func (t *Transaction) UserNum(userID uuid.UUID) int {
	switch userID {
	case t.User1:
		return 1
	case t.User2:
		return 2
	}
	return 0
}

// Involves reports whether the given user is one of the two parties.
func (t *Transaction) Involves(userID uuid.UUID) bool {
	return t.UserNum(userID) != 0
}

// StatusOf returns the status slot belonging to the given user.
func (t *Transaction) StatusOf(userID uuid.UUID) TransactionStatus {
	if t.UserNum(userID) == 2 {
		return t.StatusUser2
	}
	return t.StatusUser1
}

// SetStatusOf writes the status slot belonging to the given user. Each user
// writes only their own slot, so concurrent writes from the two parties
// commute.
func (t *Transaction) SetStatusOf(userID uuid.UUID, status TransactionStatus) bool {
	switch t.UserNum(userID) {
	case 1:
		t.StatusUser1 = status
	case 2:
		t.StatusUser2 = status
	default:
		return false
	}
	return true
}

// OwnedItem returns the item the given user brings into the transaction.
// For a one-way transaction only user1 owns an item.
func (t *Transaction) OwnedItem(userID uuid.UUID) (uuid.UUID, bool) {
	switch t.UserNum(userID) {
	case 1:
		if len(t.Items) >= 1 {
			return t.Items[0], true
		}
	case 2:
		if t.Direction == DirectionTwoWay && len(t.Items) >= 2 {
			return t.Items[1], true
		}
	}
	return uuid.Nil, false
}

// DesiredItem returns the item the given user receives from the counterparty.
// For a one-way transaction only user2 desires an item.
func (t *Transaction) DesiredItem(userID uuid.UUID) (uuid.UUID, bool) {
	switch t.UserNum(userID) {
	case 1:
		if t.Direction == DirectionTwoWay && len(t.Items) >= 2 {
			return t.Items[1], true
		}
	case 2:
		if len(t.Items) >= 1 {
			return t.Items[0], true
		}
	}
	return uuid.Nil, false
}

// Counterparty returns the other user's id.
func (t *Transaction) Counterparty(userID uuid.UUID) uuid.UUID {
	if t.UserNum(userID) == 1 {
		return t.User2
	}
	return t.User1
}
