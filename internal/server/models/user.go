// Package models defines the server-side data model: users, the storage
// accounts they link and the transient file values proxied to providers.
package models

import "time"

// User owns a set of linked storage accounts. PasswordHash is a bcrypt hash
// and is never rendered to clients.
type User struct {
	ID           string
	Email        string
	PhoneNumber  string
	PasswordHash string
	Accounts     []Account
	CreatedAt    time.Time
}

// Clone returns a copy of u that shares no mutable state with it.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Accounts != nil {
		c.Accounts = make([]Account, len(u.Accounts))
		for i := range u.Accounts {
			c.Accounts[i] = *u.Accounts[i].Clone()
		}
	}
	return &c
}

// UserUpdate lists the profile fields to change. Nil fields are left alone.
type UserUpdate struct {
	Email        *string
	PhoneNumber  *string
	PasswordHash *string
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.PhoneNumber == nil && u.PasswordHash == nil
}
