package models

import (
	"time"

	"gorm.io/datatypes"
)

type MessageRole string

const (
	RoleMessageUser  MessageRole = "user"
	RoleMessageClone MessageRole = "clone"
)

type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

type Conversation struct {
	ID            string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID        string         `gorm:"column:user_id;type:text;index" json:"user_id"`
	CloneID       string         `gorm:"column:clone_id;type:text;index" json:"clone_id"`
	SessionID     string         `gorm:"column:session_id;type:uuid;uniqueIndex" json:"session_id"`
	Messages      datatypes.JSON `gorm:"column:messages;type:jsonb" json:"messages"`
	MessageCount  int            `gorm:"column:message_count;type:integer" json:"message_count"`
	LastMessageAt time.Time      `gorm:"column:last_message_at;type:timestamptz" json:"last_message_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Conversation) TableName() string { return "conversations" }
