package service

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"tradehub-rest-api/internal/cache"
	"tradehub-rest-api/internal/model"
	"tradehub-rest-api/internal/repository"

	"github.com/google/uuid"
)

// List types accepted by AddItem / RemoveItem.
const (
	ListInventory = "inventory"
	ListWishlist  = "wishlist"
)

const holdingsKeyPrefix = "tradehub:holdings:"

// weeklyWindow is the sliding window the weekly threshold counts over.
const weeklyWindow = 7 * 24 * time.Hour

// TradingUserDirectory owns every trading user, the item catalog, and the
// flagged/frozen account lists. It reconciles inventories and wishlists
// against transaction status transitions and decides when an account should
// be flagged for freezing.
type TradingUserDirectory struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]*model.TradingUser
	byUsername map[string]uuid.UUID
	items      map[uuid.UUID]*model.Item

	store    repository.Store
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewTradingUserDirectory creates an empty directory. store and viewCache may
// be nil; persistence and view caching are then skipped.
func NewTradingUserDirectory(store repository.Store, viewCache cache.Cache, cacheTTL time.Duration) *TradingUserDirectory {
	return &TradingUserDirectory{
		users:      make(map[uuid.UUID]*model.TradingUser),
		byUsername: make(map[string]uuid.UUID),
		items:      make(map[uuid.UUID]*model.Item),
		store:      store,
		cache:      viewCache,
		cacheTTL:   cacheTTL,
	}
}

// Restore loads a previously persisted user set, e.g. at startup.
func (d *TradingUserDirectory) Restore(users []*model.TradingUser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range users {
		if u.History == nil {
			u.History = model.NewTransactionHistory()
		}
		d.users[u.ID] = u
		d.byUsername[u.Username] = u.ID
	}
}

// saveUser writes the user aggregate through the store. The in-memory state
// is the source of truth; a failed save is logged, not propagated.
func (d *TradingUserDirectory) saveUser(ctx context.Context, u *model.TradingUser) {
	if d.store == nil {
		return
	}
	if err := d.store.SaveUser(ctx, u); err != nil {
		log.Printf("[TradingUserDirectory] Failed to persist user %s: %v", u.Username, err)
	}
}

// invalidateHoldings drops the cached holdings view for the given users.
func (d *TradingUserDirectory) invalidateHoldings(ctx context.Context, userIDs ...uuid.UUID) {
	if d.cache == nil {
		return
	}
	for _, id := range userIDs {
		if err := d.cache.Delete(ctx, holdingsKeyPrefix+id.String()); err != nil {
			log.Printf("[TradingUserDirectory] Failed to invalidate holdings cache for %s: %v", id, err)
		}
	}
}

// AddTradingUser registers a new account with default thresholds.
func (d *TradingUserDirectory) AddTradingUser(ctx context.Context, username, password, city string) (*model.TradingUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.byUsername[username]; taken {
		return nil, ErrUsernameTaken
	}

	u := model.NewTradingUser(username, password, city)
	d.users[u.ID] = u
	d.byUsername[username] = u.ID
	d.saveUser(ctx, u)
	return u, nil
}

// GetTradingUser retrieves a user by username.
func (d *TradingUserDirectory) GetTradingUser(username string) (*model.TradingUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byUsername[username]
	if !ok {
		return nil, ErrInvalidTradingUser
	}
	return d.users[id], nil
}

// GetTradingUserByID retrieves a user by id.
func (d *TradingUserDirectory) GetTradingUserByID(id uuid.UUID) (*model.TradingUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrInvalidTradingUser
	}
	return u, nil
}

// UserSnapshot returns a deep copy of a user taken under the read lock.
// Handlers render snapshots; the live aggregate keeps changing under d.mu
// while a response encodes.
func (d *TradingUserDirectory) UserSnapshot(id uuid.UUID) (*model.TradingUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrInvalidTradingUser
	}
	return u.Clone(), nil
}

// UsernamesByID resolves a list of user ids to usernames, skipping unknowns.
func (d *TradingUserDirectory) UsernamesByID(ids []uuid.UUID) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	usernames := make([]string, 0, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			usernames = append(usernames, u.Username)
		}
	}
	return usernames
}

// AllUsernames lists every registered username, sorted.
func (d *TradingUserDirectory) AllUsernames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	usernames := make([]string, 0, len(d.users))
	for name := range d.byUsername {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)
	return usernames
}

// UsersByCity lists users in a city, case-insensitively, excluding anyone on
// vacation. Returns snapshots, safe to render outside the lock.
func (d *TradingUserDirectory) UsersByCity(city string) []*model.TradingUser {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*model.TradingUser
	for _, u := range d.users {
		if u.InCity(city) && !u.IsOnVacation() {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// ValidCredentials reports whether the username/password pair matches a
// registered account. Credential format is the caller's concern.
func (d *TradingUserDirectory) ValidCredentials(username, password string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byUsername[username]
	if !ok {
		return false
	}
	return d.users[id].Password == password
}

// ChangePassword is a pass-through to the user record.
func (d *TradingUserDirectory) ChangePassword(ctx context.Context, userID uuid.UUID, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return ErrInvalidTradingUser
	}
	u.Password = password
	d.saveUser(ctx, u)
	return nil
}

// RegisterItem adds a catalog item and places it in the owner's inventory.
func (d *TradingUserDirectory) RegisterItem(ctx context.Context, ownerID uuid.UUID, name string) (*model.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	owner, ok := d.users[ownerID]
	if !ok {
		return nil, ErrInvalidTradingUser
	}

	item := model.NewItem(ownerID, name)
	d.items[item.ID] = item
	owner.AddToInventory(item.ID)
	d.saveUser(ctx, owner)
	d.invalidateHoldings(ctx, ownerID)
	return item, nil
}

// GetItem looks up a catalog item by id.
func (d *TradingUserDirectory) GetItem(id uuid.UUID) (*model.Item, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	item, ok := d.items[id]
	return item, ok
}

// AddItem adds an item id to the user's inventory or wishlist. Returns false
// (not an error) when the item is already present: a duplicate add is an
// expected outcome, not a failure.
func (d *TradingUserDirectory) AddItem(ctx context.Context, userID, itemID uuid.UUID, listType string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return false, ErrInvalidTradingUser
	}

	var added bool
	switch listType {
	case ListInventory:
		added = u.AddToInventory(itemID)
	case ListWishlist:
		added = u.AddToWishlist(itemID)
	default:
		return false, nil
	}

	if added {
		d.saveUser(ctx, u)
		d.invalidateHoldings(ctx, userID)
	}
	return added, nil
}

// RemoveItem removes an item id from the user's inventory or wishlist.
// Removing an absent item is a silent no-op.
func (d *TradingUserDirectory) RemoveItem(ctx context.Context, userID, itemID uuid.UUID, listType string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return ErrInvalidTradingUser
	}

	var removed bool
	switch listType {
	case ListInventory:
		removed = u.RemoveFromInventory(itemID)
	case ListWishlist:
		removed = u.RemoveFromWishlist(itemID)
	}

	if removed {
		d.saveUser(ctx, u)
		d.invalidateHoldings(ctx, userID)
	}
	return nil
}

// Thresholds returns a user's current (borrow, weekly, incomplete) values.
func (d *TradingUserDirectory) Thresholds(username string) (borrow, weekly, incomplete int, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byUsername[username]
	if !ok {
		return 0, 0, 0, ErrInvalidTradingUser
	}
	u := d.users[id]
	return u.BorrowThreshold, u.WeeklyThreshold, u.IncompleteThreshold, nil
}

// ChangeThreshold updates one of a user's thresholds by kind
// ("borrow", "weekly" or "incomplete").
func (d *TradingUserDirectory) ChangeThreshold(ctx context.Context, userID uuid.UUID, kind string, value int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return ErrInvalidTradingUser
	}

	switch kind {
	case "borrow":
		u.BorrowThreshold = value
	case "weekly":
		u.WeeklyThreshold = value
	case "incomplete":
		u.IncompleteThreshold = value
	default:
		return ErrBadTransactionShape
	}
	d.saveUser(ctx, u)
	return nil
}

// Freeze moves an account to frozen. Freezing is unconditional and clears
// any outstanding flag, since the flag has been acted on.
func (d *TradingUserDirectory) Freeze(ctx context.Context, userID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return ErrInvalidTradingUser
	}
	u.Status = model.UserFrozen
	u.Flagged = false
	d.saveUser(ctx, u)
	log.Printf("[TradingUserDirectory] Froze account %s", u.Username)
	return nil
}

// Unfreeze moves a frozen account back to active.
func (d *TradingUserDirectory) Unfreeze(ctx context.Context, userID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return ErrInvalidTradingUser
	}
	u.Status = model.UserActive
	d.saveUser(ctx, u)
	log.Printf("[TradingUserDirectory] Unfroze account %s", u.Username)
	return nil
}

// SetVacation toggles vacation mode. A frozen account cannot go on vacation;
// the call reports false and changes nothing.
func (d *TradingUserDirectory) SetVacation(ctx context.Context, userID uuid.UUID, on bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return false, ErrInvalidTradingUser
	}
	if u.IsFrozen() {
		return false, nil
	}
	changed := false
	if on && !u.IsOnVacation() {
		u.Status = model.UserVacation
		changed = true
	} else if !on && u.IsOnVacation() {
		u.Status = model.UserActive
		changed = true
	}
	if changed {
		d.saveUser(ctx, u)
	}
	return true, nil
}

// FlaggedUsernames lists accounts the trust engine flagged, sorted.
func (d *TradingUserDirectory) FlaggedUsernames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []string
	for _, u := range d.users {
		if u.Flagged {
			out = append(out, u.Username)
		}
	}
	sort.Strings(out)
	return out
}

// FrozenUsernames lists frozen accounts, sorted.
func (d *TradingUserDirectory) FrozenUsernames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []string
	for _, u := range d.users {
		if u.IsFrozen() {
			out = append(out, u.Username)
		}
	}
	sort.Strings(out)
	return out
}

// BorrowThresholdExceeded reports whether the user has borrowed at least
// borrowThreshold more items than they have lent. Equality counts as
// exceeded.
func (d *TradingUserDirectory) BorrowThresholdExceeded(u *model.TradingUser) bool {
	return u.History.NumItemsBorrowed-u.History.NumItemsLended >= u.BorrowThreshold
}

// IncompleteTransactionExceeded reports whether the user's current
// (non-terminal) transaction load has reached their incomplete threshold.
// Despite the name this measures current load, not historical incompletes;
// the behavior is intentional and preserved.
func (d *TradingUserDirectory) IncompleteTransactionExceeded(u *model.TradingUser) bool {
	return len(u.CurrentTransactions) >= u.IncompleteThreshold
}

// WeeklyThresholdExceeded reports whether the user has started at least
// weeklyThreshold transactions inside the sliding weekly window. current is
// the user's resolved current-transaction list.
func (d *TradingUserDirectory) WeeklyThresholdExceeded(u *model.TradingUser, current []*model.Transaction) bool {
	cutoff := time.Now().Add(-weeklyWindow)
	n := 0
	for _, t := range current {
		if t.CreatedAt.After(cutoff) {
			n++
		}
	}
	return n >= u.WeeklyThreshold
}

// ReviewTrustStanding flags the account when either the borrow or the
// incomplete threshold has been tripped. Returns whether the account is
// flagged after the review. Already-frozen accounts are left alone.
func (d *TradingUserDirectory) ReviewTrustStanding(ctx context.Context, userID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok || u.IsFrozen() {
		return false
	}

	if !u.Flagged && (d.BorrowThresholdExceeded(u) || d.IncompleteTransactionExceeded(u)) {
		u.Flagged = true
		d.saveUser(ctx, u)
		log.Printf("[TradingUserDirectory] Flagged account %s (borrowed=%d lent=%d current=%d)",
			u.Username, u.History.NumItemsBorrowed, u.History.NumItemsLended, len(u.CurrentTransactions))
	}
	return u.Flagged
}

// ReconcileItems mutates both parties' inventories and wishlists to reflect
// the transaction's current overall status. It checks kind and status before
// touching anything and is a no-op otherwise, but it is not idempotent:
// the lifecycle manager calls it exactly once per status transition.
func (d *TradingUserDirectory) ReconcileItems(ctx context.Context, t *model.Transaction) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user1, ok1 := d.users[t.User1]
	user2, ok2 := d.users[t.User2]
	if !ok1 || !ok2 {
		log.Printf("[TradingUserDirectory] Reconcile skipped for transaction %s: missing party", t.ID)
		return
	}

	switch t.Kind {
	case model.KindPermanent, model.KindVirtual:
		if t.Status == model.StatusCompleted {
			d.transferOwnership(user1, user2, t)
		}
	case model.KindTemporary:
		if t.Status == model.StatusTraded {
			d.itemsInTransit(user1, user2, t)
		}
		if t.Status == model.StatusCompleted {
			d.itemsReturned(user1, user2, t)
		}
		// NEVERRETURNED deliberately moves nothing: the lent items stay
		// out of both inventories.
	}

	d.saveUser(ctx, user1)
	d.saveUser(ctx, user2)
	d.invalidateHoldings(ctx, t.User1, t.User2)
}

// transferOwnership finalizes a permanent or virtual exchange: each receiver
// loses the wishlist entry and gains the item, each giver loses it from
// inventory. The catalog owner moves with the item.
func (d *TradingUserDirectory) transferOwnership(user1, user2 *model.TradingUser, t *model.Transaction) {
	if desired, ok := t.DesiredItem(user2.ID); ok {
		user2.RemoveFromWishlist(desired)
		user2.AddToInventory(desired)
		if item, found := d.items[desired]; found {
			item.OwnerID = user2.ID
		}
	}
	if owned, ok := t.OwnedItem(user1.ID); ok {
		user1.RemoveFromInventory(owned)
	}

	if t.Direction != model.DirectionTwoWay {
		return
	}
	if desired, ok := t.DesiredItem(user1.ID); ok {
		user1.RemoveFromWishlist(desired)
		user1.AddToInventory(desired)
		if item, found := d.items[desired]; found {
			item.OwnerID = user1.ID
		}
	}
	if owned, ok := t.OwnedItem(user2.ID); ok {
		user2.RemoveFromInventory(owned)
	}
}

// itemsInTransit records the first meeting of a temporary exchange: lent
// items leave both inventories and the wishlist entries are consumed.
func (d *TradingUserDirectory) itemsInTransit(user1, user2 *model.TradingUser, t *model.Transaction) {
	if desired, ok := t.DesiredItem(user2.ID); ok {
		user2.RemoveFromWishlist(desired)
	}
	if owned, ok := t.OwnedItem(user1.ID); ok {
		user1.RemoveFromInventory(owned)
	}
	if t.Direction == model.DirectionTwoWay {
		if desired, ok := t.DesiredItem(user1.ID); ok {
			user1.RemoveFromWishlist(desired)
		}
		if owned, ok := t.OwnedItem(user2.ID); ok {
			user2.RemoveFromInventory(owned)
		}
	}
}

// itemsReturned records the return meeting of a temporary exchange: lent
// items go back to their original owners.
func (d *TradingUserDirectory) itemsReturned(user1, user2 *model.TradingUser, t *model.Transaction) {
	if owned, ok := t.OwnedItem(user1.ID); ok {
		user1.AddToInventory(owned)
	}
	if t.Direction == model.DirectionTwoWay {
		if owned, ok := t.OwnedItem(user2.ID); ok {
			user2.AddToInventory(owned)
		}
	}
}

// updateTrustCounters increments the borrow/lend counters and the
// per-counterparty trade counts for both parties. In a two-way swap each
// user both gives and receives, so both counters move on both sides; in a
// one-way donation user1 lends and user2 borrows.
func (d *TradingUserDirectory) updateTrustCounters(user1, user2 *model.TradingUser, t *model.Transaction) {
	user1.History.NumItemsLended++
	user2.History.NumItemsBorrowed++
	if t.Direction == model.DirectionTwoWay {
		user1.History.NumItemsBorrowed++
		user2.History.NumItemsLended++
	}
	user1.History.RecordTradeWith(user2.Username)
	user2.History.RecordTradeWith(user1.Username)
}

// FinalizeTransaction archives a terminal transaction: its id leaves both
// users' current lists and lands in both histories, with trust counters
// updated. Returns false without touching anything when the status is not
// one of completed, incomplete or never_returned.
func (d *TradingUserDirectory) FinalizeTransaction(ctx context.Context, t *model.Transaction) bool {
	switch t.Status {
	case model.StatusCompleted, model.StatusIncomplete, model.StatusNeverReturned:
	default:
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	user1, ok1 := d.users[t.User1]
	user2, ok2 := d.users[t.User2]
	if !ok1 || !ok2 {
		return false
	}

	user1.RemoveCurrentTransaction(t.ID)
	user2.RemoveCurrentTransaction(t.ID)
	user1.History.Archive(t.ID)
	user2.History.Archive(t.ID)
	d.updateTrustCounters(user1, user2, t)

	d.saveUser(ctx, user1)
	d.saveUser(ctx, user2)
	return true
}

// DropFromCurrent removes a transaction id from both parties' current lists
// without archiving it. Used for cancelled negotiations, which never reach
// either user's history.
func (d *TradingUserDirectory) DropFromCurrent(ctx context.Context, t *model.Transaction) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u, ok := d.users[t.User1]; ok {
		u.RemoveCurrentTransaction(t.ID)
		d.saveUser(ctx, u)
	}
	if u, ok := d.users[t.User2]; ok {
		u.RemoveCurrentTransaction(t.ID)
		d.saveUser(ctx, u)
	}
}

// RegisterCurrentTransaction records a fresh transaction id on both parties.
func (d *TradingUserDirectory) RegisterCurrentTransaction(ctx context.Context, t *model.Transaction) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u, ok := d.users[t.User1]; ok {
		u.AddCurrentTransaction(t.ID)
		d.saveUser(ctx, u)
	}
	if u, ok := d.users[t.User2]; ok {
		u.AddCurrentTransaction(t.ID)
		d.saveUser(ctx, u)
	}
}

// holdingsView is the cached read model of a user's current holdings.
type holdingsView struct {
	UserID    uuid.UUID   `json:"user_id"`
	Username  string      `json:"username"`
	Inventory []uuid.UUID `json:"inventory"`
	Wishlist  []uuid.UUID `json:"wishlist"`
}

// HoldingsView returns the JSON holdings view for a user, served from the
// view cache when one is configured. The cache entry is dropped whenever a
// reconciliation or item edit touches the user, so a reader never observes
// a half-reconciled inventory.
func (d *TradingUserDirectory) HoldingsView(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	build := func() ([]byte, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()

		u, ok := d.users[userID]
		if !ok {
			return nil, ErrInvalidTradingUser
		}
		view := holdingsView{
			UserID:    u.ID,
			Username:  u.Username,
			Inventory: append([]uuid.UUID{}, u.Inventory...),
			Wishlist:  append([]uuid.UUID{}, u.Wishlist...),
		}
		return json.Marshal(view)
	}

	if d.cache == nil {
		return build()
	}
	return d.cache.GetOrSet(ctx, holdingsKeyPrefix+userID.String(), d.cacheTTL, build)
}

// UserCount returns the number of registered users.
func (d *TradingUserDirectory) UserCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
