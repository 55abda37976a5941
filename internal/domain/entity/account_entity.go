package entity

import (
	"errors"
	"strings"
	"time"
)

// ErrResetTicketGone is returned by a store when a patch pinned to a reset
// ticket finds it consumed, replaced or expired.
var ErrResetTicketGone = errors.New("reset ticket is no longer valid")

// Account is the aggregate root for the credential domain.
// PasswordHash is only ever produced by the password hasher and is never
// serialized outward; raw passwords are not stored.
type Account struct {
	ID                string
	Name              string
	Email             string
	Photo             string
	Role              Role
	PasswordHash      string
	PasswordChangedAt *time.Time
	Reset             *ResetTicket
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ResetTicket is the stored half of a password reset: the one-way hash of the
// raw secret and its expiry. Both are present or the ticket is absent.
type ResetTicket struct {
	TokenHash string
	ExpiresAt time.Time
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at issuedAt, compared at second precision like token timestamps.
func (a *Account) ChangedPasswordAfter(issuedAt time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}
	return a.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// HasRole reports whether the account's role is one of roles.
func (a *Account) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// AccountPatch is a partial update. Nil fields are left unchanged. Reset and
// ClearReset are mutually exclusive; Reset replaces both ticket fields at once.
type AccountPatch struct {
	Name              *string
	Email             *string
	Photo             *string
	Role              *Role
	Active            *bool
	PasswordHash      *string
	PasswordChangedAt *time.Time
	Reset             *ResetTicket
	ClearReset        bool

	// ExpectReset makes the patch conditional: it applies only while the
	// stored ticket has this hash and has not expired at ExpectReset.At.
	ExpectReset *ResetExpectation
}

// ResetExpectation pins a patch to the reset ticket it was authorized by.
type ResetExpectation struct {
	TokenHash string
	At        time.Time
}

// Check reports ErrResetTicketGone when the patch expects a ticket the account no
// longer holds. Stores call it inside the same atomic step as ApplyTo.
func (p AccountPatch) Check(a *Account) error {
	if p.ExpectReset == nil {
		return nil
	}
	if a.Reset == nil || a.Reset.TokenHash != p.ExpectReset.TokenHash || !a.Reset.ExpiresAt.After(p.ExpectReset.At) {
		return ErrResetTicketGone
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Photo == nil && p.Role == nil &&
		p.Active == nil && p.PasswordHash == nil && p.PasswordChangedAt == nil &&
		p.Reset == nil && !p.ClearReset
}

// ApplyTo copies the patch onto a.
func (p AccountPatch) ApplyTo(a *Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Photo != nil {
		a.Photo = *p.Photo
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.PasswordChangedAt != nil {
		t := *p.PasswordChangedAt
		a.PasswordChangedAt = &t
	}
	switch {
	case p.Reset != nil:
		r := *p.Reset
		a.Reset = &r
	case p.ClearReset:
		a.Reset = nil
	}
}
