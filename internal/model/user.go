// Package model defines the data structures used throughout the application.
package model

import "time"

// RoleUser is the role id, seeded by the initial migration, that every new
// account gets.
const RoleUser = 1

// User is an identity: a local account or one created from a social login.
//
// ResetUsed and ResetTokenID carry the password-reset state. ResetUsed flips
// to true when a reset commits; ResetTokenID names the one reset credential
// (its jti) that may commit next. A forgot-password request rewrites both.
//
// PasswordHash, ResetUsed and ResetTokenID never leave the server.
type User struct {
	ID           string    `json:"id"`
	Firstname    string    `json:"firstname"`
	Lastname     string    `json:"lastname"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RoleID       int       `json:"roleId"`
	ResetUsed    bool      `json:"-"`
	ResetTokenID string    `json:"-"`
	Provider     string    `json:"provider,omitempty"` // "local", "github"
	ExternalID   string    `json:"-"`                  // provider's id for the account
	Image        string    `json:"image,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is the public view returned after sign-in.
type Profile struct {
	ID        string `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

// Profile projects u onto the fields safe to show any caller.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Email:     u.Email,
	}
}
