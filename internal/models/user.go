package models

import (
	"time"

	"github.com/google/uuid"
)

// Credentials is the user's credential generation record. Version is embedded
// into refresh, confirmation and reset-password tokens: a token is valid only
// while the user's current version equals the one it was issued against, so
// bumping the version invalidates every previously issued token at once.
type Credentials struct {
	Version           int    `json:"version"`
	LastPassword      string `json:"lastPassword"`
	PasswordUpdatedAt int64  `json:"passwordUpdatedAt"`
	UpdatedAt         int64  `json:"updatedAt"`
}

// Bump increments the version without a password change (e.g. email change)
func (c *Credentials) Bump(now time.Time) {
	c.Version++
	c.UpdatedAt = now.Unix()
}

// RecordPasswordChange increments the version and captures the hash of the
// password that is being replaced, so sign-in can tell "wrong password" from
// "old password used after a change"
func (c *Credentials) RecordPasswordChange(previousHash string, now time.Time) {
	c.Version++
	c.LastPassword = previousHash
	c.PasswordUpdatedAt = now.Unix()
	c.UpdatedAt = now.Unix()
}

type User struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Email        string
	Username     string
	Name         string
	PasswordHash string
	Confirmed    bool
	Credentials  Credentials
}
