package session

import (
	"time"

	"github.com/MrEthical07/goCampus/api"
)

// UserInfo is the signed-in user as the client knows it. Avatar is always absolute or
// empty.
type UserInfo struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Username string       `json:"username"`
	Phone    string       `json:"phone,omitempty"`
	Avatar   string       `json:"avatar"`
	UserType api.UserType `json:"userType"`
}

// IsZero reports whether no field is set.
func (u UserInfo) IsZero() bool {
	return u == UserInfo{}
}

// Partial is a shallow update of [UserInfo]. Nil fields are left untouched by
// [UserInfo.Merge]; a non-nil pointer to the zero value clears the field.
type Partial struct {
	ID       *string
	Name     *string
	Username *string
	Phone    *string
	Avatar   *string
	UserType *api.UserType
}

// Ptr returns a pointer to v, for building a [Partial] inline.
func Ptr[T any](v T) *T {
	return &v
}

// Merge returns u with every non-nil field of p applied.
func (u UserInfo) Merge(p Partial) UserInfo {
	if p.ID != nil {
		u.ID = *p.ID
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.UserType != nil {
		u.UserType = *p.UserType
	}
	return u
}

// PartialFrom returns a [Partial] carrying only the non-zero fields of u.
func PartialFrom(u UserInfo) Partial {
	var p Partial
	if u.ID != "" {
		p.ID = Ptr(u.ID)
	}
	if u.Name != "" {
		p.Name = Ptr(u.Name)
	}
	if u.Username != "" {
		p.Username = Ptr(u.Username)
	}
	if u.Phone != "" {
		p.Phone = Ptr(u.Phone)
	}
	if u.Avatar != "" {
		p.Avatar = Ptr(u.Avatar)
	}
	if u.UserType != 0 {
		p.UserType = Ptr(u.UserType)
	}
	return p
}

// State is a point-in-time copy of a [Store]. IsLogin implies Token is non-empty.
type State struct {
	UserInfo  UserInfo
	IsLogin   bool
	Token     string
	TokenType string
	// ExpiresAt is zero when the expiry is unknown.
	ExpiresAt time.Time
}

// Expired reports whether the token has a known expiry at or before now.
func (s State) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Credentials are what a user types into the login form.
type Credentials struct {
	Username string
	Password string
	UserType api.UserType
}

// Result is the outcome of a session operation. Message is user-facing; Err keeps the
// underlying cause for logging and is nil on success.
type Result struct {
	Success bool
	Message string
	User    *UserInfo
	Err     error
}
