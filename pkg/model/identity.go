package model

import "time"

// UserIdentity is the per-user profile record. It is created on first
// contact with a user and its timestamp is refreshed on every turn.
// Further profile fields are filled in by future extraction logic.
type UserIdentity struct {
	UserID      string
	DisplayName string
	Traits      map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewUserIdentity creates a default identity for a user seen for the
// first time
func NewUserIdentity(userID string) *UserIdentity {
	now := time.Now()
	return &UserIdentity{
		UserID:    userID,
		Traits:    map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes the update timestamp
func (x *UserIdentity) Touch() {
	x.UpdatedAt = time.Now()
}
