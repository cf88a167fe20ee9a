package service

import (
	"tradehub-rest-api/internal/model"
)

// statusSnapshot is the immutable view of a transaction the status rules
// evaluate against. Taking a snapshot up front keeps every rule pure: a rule
// firing never changes what a later rule sees, only what the final outcome is.
type statusSnapshot struct {
	Overall       model.TransactionStatus
	User1         model.TransactionStatus
	User2         model.TransactionStatus
	SingleMeeting bool
}

func snapshotOf(t *model.Transaction) statusSnapshot {
	return statusSnapshot{
		Overall:       t.Status,
		User1:         t.StatusUser1,
		User2:         t.StatusUser2,
		SingleMeeting: t.Kind.SingleMeeting(),
	}
}

func (s statusSnapshot) either(status model.TransactionStatus) bool {
	return s.User1 == status || s.User2 == status
}

func (s statusSnapshot) both(status model.TransactionStatus) bool {
	return s.User1 == status && s.User2 == status
}

// statusRule is one named predicate in the evaluation order. A rule with an
// empty next status can match but never produces a transition; it exists to
// document the default outcome.
type statusRule struct {
	name    string
	applies func(statusSnapshot) bool
	next    model.TransactionStatus
}

// StatusStrategy decides how a transaction's overall status advances from
// its two per-user slots. Every rule is evaluated against the same snapshot
// and the transaction takes the last applicable outcome, so a more specific
// rule later in the order overrides an earlier match (this is how a
// single-meeting transaction goes straight from CONFIRMED to COMPLETED,
// skipping TRADED).
type StatusStrategy struct {
	rules []statusRule
}

// NewStatusStrategy builds the fixed rule set.
func NewStatusStrategy() *StatusStrategy {
	return &StatusStrategy{rules: []statusRule{
		{
			name: "noMeetingComplete",
			applies: func(s statusSnapshot) bool {
				return s.Overall == model.StatusPending && s.both(model.StatusPending)
			},
			// no transition: negotiation has not moved yet
		},
		{
			name: "pendingToCancelled",
			applies: func(s statusSnapshot) bool {
				return s.Overall == model.StatusPending && s.either(model.StatusCancelled)
			},
			next: model.StatusCancelled,
		},
		{
			name: "pendingToConfirmed",
			applies: func(s statusSnapshot) bool {
				return s.Overall == model.StatusPending && s.both(model.StatusConfirmed)
			},
			next: model.StatusConfirmed,
		},
		{
			name: "confirmedToTraded",
			applies: func(s statusSnapshot) bool {
				return s.Overall == model.StatusConfirmed && s.both(model.StatusTraded)
			},
			next: model.StatusTraded,
		},
		{
			name: "confirmedToIncomplete",
			applies: func(s statusSnapshot) bool {
				return s.Overall == model.StatusConfirmed && s.either(model.StatusIncomplete)
			},
			next: model.StatusIncomplete,
		},
		{
			name: "confirmedToComplete",
			applies: func(s statusSnapshot) bool {
				return s.Overall == model.StatusConfirmed && s.SingleMeeting && s.both(model.StatusTraded)
			},
			next: model.StatusCompleted,
		},
		{
			name: "tradedToComplete",
			applies: func(s statusSnapshot) bool {
				return s.Overall == model.StatusTraded && s.both(model.StatusCompleted)
			},
			next: model.StatusCompleted,
		},
		{
			name: "tradedToNeverReturned",
			applies: func(s statusSnapshot) bool {
				return s.Overall == model.StatusTraded && s.either(model.StatusNeverReturned)
			},
			next: model.StatusNeverReturned,
		},
	}}
}

// Evaluate runs every rule against a snapshot of the transaction and returns
// the resulting overall status plus whether any rule produced a transition.
// It does not mutate the transaction; applying the result is the caller's
// job, exactly once per transition.
func (ss *StatusStrategy) Evaluate(t *model.Transaction) (model.TransactionStatus, bool) {
	snap := snapshotOf(t)
	next := snap.Overall
	fired := false
	for _, rule := range ss.rules {
		if rule.next == "" {
			continue
		}
		if rule.applies(snap) {
			next = rule.next
			fired = true
		}
	}
	return next, fired
}
