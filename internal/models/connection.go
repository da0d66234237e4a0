package models

import (
	"fmt"
	"time"
)

// Connection stores a user's credentials for one provider.
//
// Credentials are an opaque key-value bag because every provider wants a
// different shape: OAuth token triples for Spotify and TIDAL, a user auth
// token for Qobuz, and raw browser headers for the YouTube Music proxy.
// Each user holds at most one connection per provider.
type Connection struct {
	id          string
	sequence    int
	userID      string
	provider    Provider
	credentials map[string]string
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewConnection creates a new Connection for the given user and provider.
func NewConnection(sequence int, userID string, provider Provider, credentials map[string]string) *Connection {
	now := time.Now()
	if credentials == nil {
		credentials = map[string]string{}
	}
	return &Connection{
		sequence:    sequence,
		userID:      userID,
		provider:    provider,
		credentials: credentials,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Sequence() int { return c.sequence }

func (c *Connection) UserID() string { return c.userID }

func (c *Connection) Provider() Provider { return c.provider }

func (c *Connection) Credentials() map[string]string { return c.credentials }

// Credential returns a single credential value, or an empty string when unset.
func (c *Connection) Credential(key string) string { return c.credentials[key] }

func (c *Connection) CreatedAt() time.Time { return c.createdAt }

func (c *Connection) UpdatedAt() time.Time { return c.updatedAt }

func (c *Connection) DeletedAt() *time.Time { return c.deletedAt }

func (c *Connection) SetID(id string) { c.id = id }

// SetCredentials replaces the entire credential bag.
func (c *Connection) SetCredentials(credentials map[string]string) {
	if credentials == nil {
		credentials = map[string]string{}
	}
	c.credentials = credentials
}

// SetCredential sets a single credential value.
func (c *Connection) SetCredential(key, value string) {
	if c.credentials == nil {
		c.credentials = map[string]string{}
	}
	c.credentials[key] = value
}

func (c *Connection) SetUpdatedAt(t time.Time) { c.updatedAt = t }

func (c *Connection) SetDeletedAt(t *time.Time) { c.deletedAt = t }

// Validate checks that the connection has the required fields.
func (c *Connection) Validate() error {
	if c.userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if _, err := ParseProvider(string(c.provider)); err != nil {
		return fmt.Errorf("invalid provider: %s", c.provider)
	}
	return nil
}
