package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditAction is the kind of operation an audit entry records.
type AuditAction string

const (
	ActionCreate      AuditAction = "CREATE"
	ActionUpdate      AuditAction = "UPDATE"
	ActionDelete      AuditAction = "DELETE"
	ActionRestore     AuditAction = "RESTORE"
	ActionArchive     AuditAction = "ARCHIVE"
	ActionRead        AuditAction = "READ"
	ActionDownload    AuditAction = "DOWNLOAD"
	ActionView        AuditAction = "VIEW"
	ActionExport      AuditAction = "EXPORT"
	ActionLogin       AuditAction = "LOGIN"
	ActionLogout      AuditAction = "LOGOUT"
	ActionLogoutAll   AuditAction = "LOGOUT_ALL"
	ActionForceLogout AuditAction = "FORCE_LOGOUT"
)

// ChangeType classifies a field change by old/new nullity.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeModified ChangeType = "MODIFIED"
	ChangeRemoved  ChangeType = "REMOVED"
)

// FieldType is the inferred semantic type of a changed value.
type FieldType string

const (
	FieldTypeNull    FieldType = "null"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeNumber  FieldType = "number"
	FieldTypeString  FieldType = "string"
	FieldTypeDate    FieldType = "date"
	FieldTypeArray   FieldType = "array"
	FieldTypeJSON    FieldType = "json"
	FieldTypeUnknown FieldType = "unknown"
)

// SensitiveValueMask replaces sensitive values in API responses and exports.
// Stored rows keep the raw value; masking is presentation-time only.
const SensitiveValueMask = "***REDACTED***"

// AuditLog is one row of the append-only audit ledger. Actor fields are
// denormalized at write time so history survives later user mutation or
// deletion. The application never updates or deletes rows outside the
// retention cleanup path.
type AuditLog struct {
	ID               string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID           *uint          `json:"user_id" gorm:"index"`
	UserEmail        string         `json:"user_email" gorm:"type:varchar(255)"`
	UserName         string         `json:"user_name" gorm:"type:varchar(255)"`
	UserRole         string         `json:"user_role" gorm:"type:varchar(50)"`
	Action           AuditAction    `json:"action" gorm:"type:varchar(20);not null;index"`
	EntityType       string         `json:"entity_type" gorm:"type:varchar(100);not null;index"`
	EntityID         string         `json:"entity_id" gorm:"type:varchar(255);not null;index"`
	EntityName       string         `json:"entity_name" gorm:"type:varchar(255)"`
	Module           string         `json:"module" gorm:"type:varchar(100);index"`
	IPAddress        string         `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent        string         `json:"user_agent" gorm:"type:varchar(500)"`
	SessionID        string         `json:"session_id" gorm:"type:varchar(36);index"`
	RequestPath      string         `json:"request_path" gorm:"type:varchar(500)"`
	RequestMethod    string         `json:"request_method" gorm:"type:varchar(10)"`
	OperationSuccess bool           `json:"operation_success"`
	ErrorMessage     string         `json:"error_message,omitempty" gorm:"type:text"`
	OperationContext datatypes.JSON `json:"operation_context,omitempty" gorm:"type:json"`
	CreatedAt        time.Time      `json:"created_at" gorm:"index"`

	Changes []AuditFieldChange `json:"changes,omitempty" gorm:"foreignKey:AuditLogID;constraint:OnDelete:CASCADE"`
}

// AuditFieldChange is one field-level before/after pair owned by exactly one
// AuditLog entry and removed in cascade with it.
type AuditFieldChange struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	AuditLogID  string     `json:"audit_log_id" gorm:"type:varchar(36);not null;index"`
	FieldName   string     `json:"field_name" gorm:"type:varchar(255);not null"`
	FieldType   FieldType  `json:"field_type" gorm:"type:varchar(20)"`
	OldValue    *string    `json:"old_value" gorm:"type:text"`
	NewValue    *string    `json:"new_value" gorm:"type:text"`
	ChangeType  ChangeType `json:"change_type" gorm:"type:varchar(10);not null"`
	IsSensitive bool       `json:"is_sensitive"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DisplayOldValue masks the stored old value when the field is sensitive.
func (c *AuditFieldChange) DisplayOldValue() *string {
	return maskValue(c.OldValue, c.IsSensitive)
}

// DisplayNewValue masks the stored new value when the field is sensitive.
func (c *AuditFieldChange) DisplayNewValue() *string {
	return maskValue(c.NewValue, c.IsSensitive)
}

func maskValue(v *string, sensitive bool) *string {
	if v == nil || !sensitive {
		return v
	}
	masked := SensitiveValueMask
	return &masked
}
