package model

import "github.com/google/uuid"

// Item is a tradable good in the catalog. Ownership is tracked by id; the
// item an owner currently holds is whatever their inventory says.
type Item struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
}

// NewItem creates a catalog item owned by the given user.
func NewItem(ownerID uuid.UUID, name string) *Item {
	return &Item{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Name:    name,
	}
}
