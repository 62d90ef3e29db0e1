package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Case is a support/investigation case. Domain fields are intentionally slim;
// these records exist mainly as audited entities.
type Case struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"type:varchar(20);default:'open'"` // open, closed, archived
	Priority    string    `json:"priority" gorm:"type:varchar(20);default:'normal'"`
	OwnerID     uint      `json:"owner_id" gorm:"index"`
	AssigneeID  uint      `json:"assignee_id" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Todo struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	CaseID    uint       `json:"case_id" gorm:"index"`
	Title     string     `json:"title" gorm:"type:varchar(255);not null"`
	Done      bool       `json:"done" gorm:"default:false"`
	DueDate   *time.Time `json:"due_date"`
	OwnerID   uint       `json:"owner_id" gorm:"index"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Note struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CaseID    uint      `json:"case_id" gorm:"index"`
	Title     string    `json:"title" gorm:"type:varchar(255)"`
	Body      string    `json:"body" gorm:"type:text"`
	AuthorID  uint      `json:"author_id" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type KnowledgeDoc struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	Title     string      `json:"title" gorm:"type:varchar(255);not null"`
	Body      string      `json:"body" gorm:"type:text"`
	Tags      StringArray `json:"tags" gorm:"type:json"`
	AuthorID  uint        `json:"author_id" gorm:"index"`
	Published bool        `json:"published" gorm:"default:false"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// StringArray is a custom type for JSON array storage
type StringArray []string

// Value implements the driver.Valuer interface
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, a)
}
