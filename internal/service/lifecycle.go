package service

import (
	"context"
	"log"
	"sync"

	"tradehub-rest-api/internal/model"
	"tradehub-rest-api/internal/repository"

	"github.com/google/uuid"
)

// TransactionManager is the registry of every transaction in the system,
// keyed by id. Terminal transactions stay registered so histories can still
// resolve them; only cancelled negotiations are dropped.
type TransactionManager struct {
	mu  sync.RWMutex
	all map[uuid.UUID]*model.Transaction
}

// NewTransactionManager creates an empty registry.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{all: make(map[uuid.UUID]*model.Transaction)}
}

// Restore loads previously persisted transactions, e.g. at startup.
func (m *TransactionManager) Restore(transactions []*model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range transactions {
		m.all[t.ID] = t
	}
}

// GetTransaction looks a transaction up by id.
func (m *TransactionManager) GetTransaction(id uuid.UUID) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.all[id]
	if !ok {
		return nil, ErrInvalidTransaction
	}
	return t, nil
}

// GetTransactionsFromIDs resolves a list of ids, skipping any that no longer
// map to a transaction.
func (m *TransactionManager) GetTransactionsFromIDs(ids []uuid.UUID) []*model.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Transaction, 0, len(ids))
	for _, id := range ids {
		t, ok := m.all[id]
		if !ok {
			log.Printf("[TransactionManager] Transaction id %s does not map to a transaction", id)
			continue
		}
		out = append(out, t)
	}
	return out
}

// RemoveTransaction drops a transaction from the registry.
func (m *TransactionManager) RemoveTransaction(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.all[id]; !ok {
		return ErrInvalidTransaction
	}
	delete(m.all, id)
	return nil
}

// put registers a transaction.
func (m *TransactionManager) put(t *model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all[t.ID] = t
}

// Count returns the number of registered transactions.
func (m *TransactionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.all)
}

// CountByStatus returns registered transaction counts per overall status.
func (m *TransactionManager) CountByStatus() map[model.TransactionStatus]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[model.TransactionStatus]int)
	for _, t := range m.all {
		counts[t.Status]++
	}
	return counts
}

// TransactionLifecycleManager orchestrates meeting edits, per-user status
// updates and overall status advancement over the registry. All mutation of
// one transaction happens under that transaction's own lock, so "write slot,
// recompute overall, reconcile" is observed atomically by concurrent
// readers.
type TransactionLifecycleManager struct {
	*TransactionManager

	strategy  *StatusStrategy
	directory *TradingUserDirectory
	store     repository.Store
}

// NewTransactionLifecycleManager wires the lifecycle manager to the user
// directory and an optional store.
func NewTransactionLifecycleManager(directory *TradingUserDirectory, store repository.Store) *TransactionLifecycleManager {
	return &TransactionLifecycleManager{
		TransactionManager: NewTransactionManager(),
		strategy:           NewStatusStrategy(),
		directory:          directory,
		store:              store,
	}
}

// saveTransaction writes through the store; the registry is the source of
// truth and a failed save is logged, not propagated.
func (lm *TransactionLifecycleManager) saveTransaction(ctx context.Context, t *model.Transaction) {
	if lm.store == nil {
		return
	}
	if err := lm.store.SaveTransaction(ctx, t); err != nil {
		log.Printf("[TransactionLifecycleManager] Failed to persist transaction %s: %v", t.ID, err)
	}
}

// CreateTransaction validates and registers a new pending transaction
// between two users. user2 is the initiator. Items[0] must sit in user1's
// inventory and, for a two-way swap, Items[1] in user2's.
func (lm *TransactionLifecycleManager) CreateTransaction(ctx context.Context, user1ID, user2ID uuid.UUID, items []uuid.UUID, direction model.TransactionDirection, kind model.TransactionKind, meetings []model.Meeting) (*model.Transaction, error) {
	if user1ID == user2ID {
		return nil, ErrInvalidTradingUser
	}

	user1, err := lm.directory.UserSnapshot(user1ID)
	if err != nil {
		return nil, err
	}
	user2, err := lm.directory.UserSnapshot(user2ID)
	if err != nil {
		return nil, err
	}
	if user1.IsFrozen() || user1.IsOnVacation() || user2.IsFrozen() || user2.IsOnVacation() {
		return nil, ErrPartyUnavailable
	}

	if err := checkShape(direction, kind, items, meetings); err != nil {
		return nil, err
	}

	if !user1.HasInInventory(items[0]) {
		return nil, ErrItemNotOwned
	}
	if direction == model.DirectionTwoWay && !user2.HasInInventory(items[1]) {
		return nil, ErrItemNotOwned
	}

	current := lm.GetTransactionsFromIDs(user2.CurrentTransactions)
	if lm.directory.WeeklyThresholdExceeded(user2, current) {
		return nil, ErrWeeklyLimit
	}

	t := model.NewTransaction(user1ID, user2ID, items, direction, kind, meetings)
	lm.put(t)
	lm.directory.RegisterCurrentTransaction(ctx, t)
	lm.saveTransaction(ctx, t)

	log.Printf("[TransactionLifecycleManager] Created %s/%s transaction %s between %s and %s",
		kind, direction, t.ID, user1.Username, user2.Username)
	return t, nil
}

// checkShape enforces item and meeting counts consistent with the
// transaction's direction and kind.
func checkShape(direction model.TransactionDirection, kind model.TransactionKind, items []uuid.UUID, meetings []model.Meeting) error {
	switch direction {
	case model.DirectionOneWay:
		if len(items) != 1 {
			return ErrBadTransactionShape
		}
	case model.DirectionTwoWay:
		if len(items) != 2 {
			return ErrBadTransactionShape
		}
	default:
		return ErrBadTransactionShape
	}

	switch kind {
	case model.KindVirtual:
		if len(meetings) != 0 {
			return ErrBadTransactionShape
		}
	case model.KindPermanent:
		if len(meetings) != 1 {
			return ErrBadTransactionShape
		}
	case model.KindTemporary:
		if len(meetings) != 2 {
			return ErrBadTransactionShape
		}
	default:
		return ErrBadTransactionShape
	}
	return nil
}

// EditMeeting applies a single-field change to one of a transaction's
// meetings on behalf of a user. The edit applies only while the overall
// status is pending and the user still has edit quota; a rejected edit is a
// plain false, not an error. Unknown transaction ids are a hard error.
func (lm *TransactionLifecycleManager) EditMeeting(meetingNum int, transactionID, userID uuid.UUID, field, value string) (bool, error) {
	t, err := lm.GetTransaction(transactionID)
	if err != nil {
		return false, err
	}
	userNum := t.UserNum(userID)
	if userNum == 0 {
		return false, ErrInvalidTradingUser
	}

	t.Lock()
	defer t.Unlock()

	if meetingNum < 0 || meetingNum >= len(t.Meetings) {
		return false, ErrInvalidTransaction
	}
	meeting := &t.Meetings[meetingNum]
	if !meeting.CanEdit(userNum) || t.Status != model.StatusPending {
		return false, nil
	}
	return meeting.SetField(field, value), nil
}

// RecordUserEdit counts one finalized edit against the acting user's quota
// for the given meeting.
func (lm *TransactionLifecycleManager) RecordUserEdit(meetingNum int, transactionID, userID uuid.UUID) error {
	t, err := lm.GetTransaction(transactionID)
	if err != nil {
		return err
	}
	userNum := t.UserNum(userID)
	if userNum == 0 {
		return ErrInvalidTradingUser
	}

	t.Lock()
	defer t.Unlock()

	if meetingNum < 0 || meetingNum >= len(t.Meetings) {
		return ErrInvalidTransaction
	}
	t.Meetings[meetingNum].RecordEdit(userNum)
	return nil
}

// actionStatus maps a user-chosen action to the per-user status it records.
var actionStatus = map[model.TransactionAction]model.TransactionStatus{
	model.ActionConfirmMeetingDetails: model.StatusConfirmed,
	model.ActionCancel:                model.StatusCancelled,
	model.ActionConfirmMeetup:         model.StatusTraded,
	model.ActionMeetupIncomplete:      model.StatusIncomplete,
	model.ActionItemReturned:          model.StatusCompleted,
	model.ActionItemNotReturned:       model.StatusNeverReturned,
	model.ActionEdited:                model.StatusPending,
}

// UpdateStatusForUser records a user's chosen action on their own status
// slot and immediately recomputes the overall status, reconciling items and
// archiving the transaction when a transition lands. Returns whether the
// overall status changed.
func (lm *TransactionLifecycleManager) UpdateStatusForUser(ctx context.Context, userID, transactionID uuid.UUID, action model.TransactionAction) (bool, error) {
	t, err := lm.GetTransaction(transactionID)
	if err != nil {
		return false, err
	}
	if !t.Involves(userID) {
		return false, ErrInvalidTradingUser
	}

	status, ok := actionStatus[action]
	if !ok {
		return false, ErrBadTransactionShape
	}

	t.Lock()
	defer t.Unlock()

	t.SetStatusOf(userID, status)
	changed := lm.advanceLocked(ctx, t)
	lm.saveTransaction(ctx, t)
	return changed, nil
}

// AdvanceStatus recomputes the overall status from the per-user slots and
// applies any resulting transition. Exposed for callers that mutate slots
// through other paths; normal flow goes through UpdateStatusForUser.
func (lm *TransactionLifecycleManager) AdvanceStatus(ctx context.Context, t *model.Transaction) bool {
	t.Lock()
	defer t.Unlock()

	changed := lm.advanceLocked(ctx, t)
	if changed {
		lm.saveTransaction(ctx, t)
	}
	return changed
}

// advanceLocked runs the status strategy and, when a transition fires,
// performs the side effects exactly once: reconcile inventories, then
// archive (terminal) or drop (cancelled) the transaction. Caller holds the
// transaction lock.
func (lm *TransactionLifecycleManager) advanceLocked(ctx context.Context, t *model.Transaction) bool {
	next, fired := lm.strategy.Evaluate(t)
	if !fired || next == t.Status {
		return false
	}

	prev := t.Status
	t.Status = next
	log.Printf("[TransactionLifecycleManager] Transaction %s: %s -> %s", t.ID, prev, next)

	lm.directory.ReconcileItems(ctx, t)

	switch next {
	case model.StatusCompleted, model.StatusIncomplete, model.StatusNeverReturned:
		lm.directory.FinalizeTransaction(ctx, t)
		lm.directory.ReviewTrustStanding(ctx, t.User1)
		lm.directory.ReviewTrustStanding(ctx, t.User2)
	case model.StatusCancelled:
		// Cancelled negotiations never reach a history; the id just
		// disappears from both parties and the registry.
		lm.directory.DropFromCurrent(ctx, t)
		if err := lm.RemoveTransaction(t.ID); err == nil && lm.store != nil {
			if err := lm.store.DeleteTransaction(ctx, t.ID); err != nil {
				log.Printf("[TransactionLifecycleManager] Failed to delete cancelled transaction %s: %v", t.ID, err)
			}
		}
	}
	return true
}

// CurrentTransactionsOf resolves a user's current transaction list as
// snapshots, safe to render while the parties keep acting.
func (lm *TransactionLifecycleManager) CurrentTransactionsOf(userID uuid.UUID) ([]*model.Transaction, error) {
	u, err := lm.directory.UserSnapshot(userID)
	if err != nil {
		return nil, err
	}

	live := lm.GetTransactionsFromIDs(u.CurrentTransactions)
	out := make([]*model.Transaction, len(live))
	for i, t := range live {
		out[i] = t.Snapshot()
	}
	return out, nil
}
