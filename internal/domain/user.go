package domain

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is keyed by an internal id; TelegramID is the immutable external identity.
// Cross references (pinned item, referrer) are ids, never embedded entities.
type User struct {
	ID            int64     `json:"id"`
	TelegramID    int64     `json:"telegramId"`
	Username      string    `json:"username,omitempty"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	Balance       int64     `json:"balance"`
	Role          Role      `json:"role"`
	PinnedItemID  *int64    `json:"pinnedNftId,omitempty"`
	ReferredBy    *int64    `json:"referredBy,omitempty"`
	ReferralCount int       `json:"referralCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Unpin clears the pinned item when it equals itemID and reports whether it did.
func (u *User) Unpin(itemID int64) bool {
	if u.PinnedItemID != nil && *u.PinnedItemID == itemID {
		u.PinnedItemID = nil
		return true
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName falls back to a neutral label for users without a Telegram username.
func (u *User) DisplayName() string {
	if u.Username == "" {
		return "User"
	}
	return u.Username
}

func (u *User) Clone() *User {
	c := *u
	if u.PinnedItemID != nil {
		v := *u.PinnedItemID
		c.PinnedItemID = &v
	}
	if u.ReferredBy != nil {
		v := *u.ReferredBy
		c.ReferredBy = &v
	}
	return &c
}
