// Package types provides the core data types for the Threadline server.
package types

import "time"

// Identity is the common surface of the two user record variants.
// An ephemeral User is decoded from the current request's credential;
// a PersistedUser has been reconciled with the durable user store.
type Identity interface {
	// Identifier returns the stable identifier of the user.
	Identifier() string
	// Display returns the user-facing display name. May be empty.
	Display() string
	// Persisted reports whether the record came from the user store.
	Persisted() bool
}

// User is an identity derived solely from a verified credential.
type User struct {
	ID          string         `json:"identifier"`
	DisplayName string         `json:"display_name,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Identifier returns the stable identifier of the user.
func (u *User) Identifier() string { return u.ID }

// Display returns the user-facing display name.
func (u *User) Display() string { return u.DisplayName }

// Persisted reports whether the record came from the user store.
func (u *User) Persisted() bool { return false }

// PersistedUser is a user record retrieved from or created in the
// durable user store.
type PersistedUser struct {
	User

	// RecordID is the store-assigned primary key, distinct from the
	// credential identifier.
	RecordID  string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Persisted reports whether the record came from the user store.
func (u *PersistedUser) Persisted() bool { return true }
