package model

import (
	"strings"

	"github.com/google/uuid"
)

// UserStatus is the account standing of a trading user.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserFrozen   UserStatus = "frozen"
	UserVacation UserStatus = "vacation"
)

// Default thresholds applied to every new account.
const (
	DefaultBorrowThreshold     = 1
	DefaultWeeklyThreshold     = 3
	DefaultIncompleteThreshold = 2
)

// TransactionHistory aggregates a user's completed trades. The counters are
// monotonically non-decreasing; TradeCounts maps counterparty usernames to
// the number of trades completed together.
type TransactionHistory struct {
	NumItemsBorrowed int            `json:"num_items_borrowed"`
	NumItemsLended   int            `json:"num_items_lended"`
	TradeCounts      map[string]int `json:"trade_counts"`
	Archived         []uuid.UUID    `json:"archived"`
}

// NewTransactionHistory creates an empty history.
func NewTransactionHistory() *TransactionHistory {
	return &TransactionHistory{TradeCounts: make(map[string]int)}
}

// RecordTradeWith increments the trade count against a counterparty.
func (h *TransactionHistory) RecordTradeWith(username string) {
	if h.TradeCounts == nil {
		h.TradeCounts = make(map[string]int)
	}
	h.TradeCounts[username]++
}

// Archive appends a finished transaction id.
func (h *TransactionHistory) Archive(transactionID uuid.UUID) {
	h.Archived = append(h.Archived, transactionID)
}

// Clone returns a deep copy of the history.
func (h *TransactionHistory) Clone() *TransactionHistory {
	c := &TransactionHistory{
		NumItemsBorrowed: h.NumItemsBorrowed,
		NumItemsLended:   h.NumItemsLended,
		TradeCounts:      make(map[string]int, len(h.TradeCounts)),
		Archived:         append([]uuid.UUID(nil), h.Archived...),
	}
	for username, n := range h.TradeCounts {
		c.TradeCounts[username] = n
	}
	return c
}

// TradingUser is an account in the trading system, carrying its inventory,
// wishlist, thresholds and trade history. Credentials are opaque strings;
// how they are produced is not this package's concern.
type TradingUser struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	Password string     `json:"password"`
	City     string     `json:"city"`
	Status   UserStatus `json:"status"`

	// Flagged marks an account the trust engine wants an admin to look at.
	// Kept on the user so the flagged sub-list survives a restart.
	Flagged bool `json:"flagged"`

	BorrowThreshold     int `json:"borrow_threshold"`
	WeeklyThreshold     int `json:"weekly_threshold"`
	IncompleteThreshold int `json:"incomplete_threshold"`

	CurrentTransactions []uuid.UUID `json:"current_transactions"`
	Inventory           []uuid.UUID `json:"inventory"`
	Wishlist            []uuid.UUID `json:"wishlist"`

	History *TransactionHistory `json:"history"`
}

// NewTradingUser creates an active user with default thresholds and empty
// lists.
func NewTradingUser(username, password, city string) *TradingUser {
	return &TradingUser{
		ID:                  uuid.New(),
		Username:            username,
		Password:            password,
		City:                city,
		Status:              UserActive,
		BorrowThreshold:     DefaultBorrowThreshold,
		WeeklyThreshold:     DefaultWeeklyThreshold,
		IncompleteThreshold: DefaultIncompleteThreshold,
		History:             NewTransactionHistory(),
	}
}

// Clone returns a deep copy of the user with its own list slices and
// history. Callers hold whatever lock guards the original while cloning.
func (u *TradingUser) Clone() *TradingUser {
	c := *u
	c.CurrentTransactions = append([]uuid.UUID(nil), u.CurrentTransactions...)
	c.Inventory = append([]uuid.UUID(nil), u.Inventory...)
	c.Wishlist = append([]uuid.UUID(nil), u.Wishlist...)
	if u.History != nil {
		c.History = u.History.Clone()
	}
	return &c
}

// IsFrozen reports whether the account is frozen.
func (u *TradingUser) IsFrozen() bool { return u.Status == UserFrozen }

// IsOnVacation reports whether the account is in vacation mode.
func (u *TradingUser) IsOnVacation() bool { return u.Status == UserVacation }

// InCity matches the user's city case-insensitively.
func (u *TradingUser) InCity(city string) bool {
	return strings.EqualFold(u.City, city)
}

func contains(list []uuid.UUID, id uuid.UUID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func remove(list []uuid.UUID, id uuid.UUID) ([]uuid.UUID, bool) {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

// HasInInventory reports whether the item id is in the user's inventory.
func (u *TradingUser) HasInInventory(itemID uuid.UUID) bool {
	return contains(u.Inventory, itemID)
}

// HasInWishlist reports whether the item id is in the user's wishlist.
func (u *TradingUser) HasInWishlist(itemID uuid.UUID) bool {
	return contains(u.Wishlist, itemID)
}

// AddToInventory appends the item id unless it is already present.
func (u *TradingUser) AddToInventory(itemID uuid.UUID) bool {
	if contains(u.Inventory, itemID) {
		return false
	}
	u.Inventory = append(u.Inventory, itemID)
	return true
}

// RemoveFromInventory removes the item id if present.
func (u *TradingUser) RemoveFromInventory(itemID uuid.UUID) bool {
	var ok bool
	u.Inventory, ok = remove(u.Inventory, itemID)
	return ok
}

// AddToWishlist appends the item id unless it is already present.
func (u *TradingUser) AddToWishlist(itemID uuid.UUID) bool {
	if contains(u.Wishlist, itemID) {
		return false
	}
	u.Wishlist = append(u.Wishlist, itemID)
	return true
}

// RemoveFromWishlist removes the item id if present.
func (u *TradingUser) RemoveFromWishlist(itemID uuid.UUID) bool {
	var ok bool
	u.Wishlist, ok = remove(u.Wishlist, itemID)
	return ok
}

// AddCurrentTransaction registers a non-terminal transaction id.
func (u *TradingUser) AddCurrentTransaction(transactionID uuid.UUID) {
	if !contains(u.CurrentTransactions, transactionID) {
		u.CurrentTransactions = append(u.CurrentTransactions, transactionID)
	}
}

// RemoveCurrentTransaction drops a transaction id from the current list.
func (u *TradingUser) RemoveCurrentTransaction(transactionID uuid.UUID) bool {
	var ok bool
	u.CurrentTransactions, ok = remove(u.CurrentTransactions, transactionID)
	return ok
}
