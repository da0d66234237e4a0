package models

import (
	"fmt"
	"time"
)

// User represents an account that owns provider connections and import jobs.
//
// Users are created implicitly by the tenant session middleware the first
// time a browser or CLI session shows up, so the only required field is a
// unique username.
type User struct {
	id          string
	sequence    int
	username    string
	displayName string
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewUser creates a new User with the given sequence, username, and display name.
func NewUser(sequence int, username, displayName string) *User {
	now := time.Now()
	return &User{
		sequence:    sequence,
		username:    username,
		displayName: displayName,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (u *User) ID() string { return u.id }

func (u *User) Sequence() int { return u.sequence }

func (u *User) Username() string { return u.username }

func (u *User) DisplayName() string { return u.displayName }

func (u *User) CreatedAt() time.Time { return u.createdAt }

func (u *User) UpdatedAt() time.Time { return u.updatedAt }

func (u *User) DeletedAt() *time.Time { return u.deletedAt }

func (u *User) SetID(id string) { u.id = id }

func (u *User) SetDisplayName(name string) { u.displayName = name }

func (u *User) SetUpdatedAt(t time.Time) { u.updatedAt = t }

func (u *User) SetDeletedAt(t *time.Time) { u.deletedAt = t }

// Validate checks that the user has the required fields.
func (u *User) Validate() error {
	if u.username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}
