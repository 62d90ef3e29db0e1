package models

import (
	"time"
)

// LogoutReason explains why a session stopped being active.
type LogoutReason string

const (
	LogoutReasonNone     LogoutReason = "none"
	LogoutReasonNewLogin LogoutReason = "new_login"
	LogoutReasonManual   LogoutReason = "manual"
	LogoutReasonExpired  LogoutReason = "expired"
	LogoutReasonForced   LogoutReason = "forced"
)

// Session is one authenticated device session. At most one row per user may be
// active at a time; ActiveKey backs that invariant with a unique index (it holds
// the user id while the session is active and NULL afterwards, so inactive rows
// never collide).
type Session struct {
	ID               string       `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID           uint         `json:"user_id" gorm:"not null;index"`
	TokenHash        string       `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	RefreshTokenHash string       `json:"-" gorm:"type:varchar(64)"`
	Browser          string       `json:"browser" gorm:"type:varchar(100)"`
	OS               string       `json:"os" gorm:"type:varchar(100)"`
	DeviceClass      string       `json:"device_class" gorm:"type:varchar(50)"`
	SourceAddress    string       `json:"source_address" gorm:"type:varchar(45)"`
	IsActive         bool         `json:"is_active" gorm:"index"`
	ActiveKey        *uint        `json:"-" gorm:"uniqueIndex"`
	LogoutReason     LogoutReason `json:"logout_reason" gorm:"type:varchar(20);default:'none'"`
	ExpiresAt        time.Time    `json:"expires_at" gorm:"not null;index"`
	LastActivityAt   time.Time    `json:"last_activity_at"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	User             User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// DeviceLabel renders the parsed fingerprint as a single human-readable string.
func (s *Session) DeviceLabel() string {
	return s.Browser + " on " + s.OS + " (" + s.DeviceClass + ")"
}
