package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message log statuses
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusDemo    = "demo" // simulated delivery while WhatsApp is not connected
)

// Contact is a bulk-send recipient imported from CSV. Contacts are never
// updated in place; the collection only supports bulk insert and full delete.
type Contact struct {
	ID               string                                `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name             string                                `gorm:"type:varchar(255);not null" json:"name"`
	Phone            string                                `gorm:"type:varchar(32);not null;index" json:"phone"`
	AdditionalFields datatypes.JSONType[map[string]string] `json:"additional_fields"`
	Position         int                                   `gorm:"not null;default:0" json:"-"` // row within its upload
	CreatedAt        time.Time                             `gorm:"index" json:"created_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Fields returns the contact's extra fields, never nil.
func (c Contact) Fields() map[string]string {
	if f := c.AdditionalFields.Data(); f != nil {
		return f
	}
	return map[string]string{}
}

// MessageTemplate is a saved message body with {field} placeholders
type MessageTemplate struct {
	ID           string                      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Content      string                      `gorm:"type:text;not null" json:"content"`
	Placeholders datatypes.JSONSlice[string] `json:"placeholders"`
	CreatedAt    time.Time                   `gorm:"index" json:"created_at"`
}

func (MessageTemplate) TableName() string {
	return "message_templates"
}

func (t *MessageTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Placeholders == nil {
		t.Placeholders = datatypes.JSONSlice[string]{}
	}
	return nil
}

// MessageLog records one send attempt. Entries are append-only and keep the
// contact id as a plain reference: deleting contacts leaves their logs intact.
type MessageLog struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BatchID      string     `gorm:"type:varchar(36);index" json:"batch_id"`
	ContactID    string     `gorm:"type:varchar(36);index" json:"contact_id"`
	Phone        string     `gorm:"type:varchar(32)" json:"phone"`
	Message      string     `gorm:"type:text" json:"message"`
	Status       string     `gorm:"type:varchar(20);index" json:"status"`
	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

func (MessageLog) TableName() string {
	return "message_logs"
}

func (m *MessageLog) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
