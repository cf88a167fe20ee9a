package service

// ServiceError is a sentinel error produced by the trading services.
type ServiceError string

func (e ServiceError) Error() string { return string(e) }

const (
	// ErrInvalidTransaction indicates a transaction id that maps to nothing.
	// It is always surfaced: a dangling id is a broken reference, not a
	// negotiation outcome.
	ErrInvalidTransaction ServiceError = "invalid transaction id"

	// ErrInvalidTradingUser indicates an unknown user id or username.
	ErrInvalidTradingUser ServiceError = "invalid trading user"

	// ErrUsernameTaken indicates a registration with a username already in use.
	ErrUsernameTaken ServiceError = "username already taken"

	// ErrPartyUnavailable indicates a party that is frozen or on vacation.
	ErrPartyUnavailable ServiceError = "party is frozen or on vacation"

	// ErrItemNotOwned indicates an item leg not present in its owner's inventory.
	ErrItemNotOwned ServiceError = "item not in owner's inventory"

	// ErrWeeklyLimit indicates the initiator hit their weekly transaction threshold.
	ErrWeeklyLimit ServiceError = "weekly transaction threshold reached"

	// ErrBadTransactionShape indicates item/meeting counts inconsistent with
	// the transaction's direction and kind.
	ErrBadTransactionShape ServiceError = "item or meeting count inconsistent with transaction shape"
)
