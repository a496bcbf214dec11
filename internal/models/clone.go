package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CloneStatus string

const (
	StatusDraft     CloneStatus = "draft"
	StatusApproved  CloneStatus = "approved"
	StatusPublished CloneStatus = "published"
)

func (s CloneStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusPublished:
		return true
	}
	return false
}

// DefaultImage is stored on every clone until a portrait upload succeeds.
const DefaultImage = "default-avatar.png"

type Clone struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CloneID string             `bson:"clone_id" json:"clone_id"` // clone_u_<hex>

	Name         string   `bson:"clone_name" json:"clone_name"`
	Tone         []string `bson:"tone" json:"tone"`
	Style        []string `bson:"style" json:"style"`
	Values       []string `bson:"values" json:"values"`
	Catchphrases []string `bson:"catchphrases" json:"catchphrases"`
	Dos          string   `bson:"dos,omitempty" json:"dos"`
	Donts        string   `bson:"donts,omitempty" json:"donts"`
	Description  string   `bson:"freeform_description,omitempty" json:"description"`

	Image  string      `bson:"image" json:"image"`
	Status CloneStatus `bson:"status" json:"status"`

	// weak references, no cascading delete
	FileUploads  []string `bson:"file_uploads" json:"file_uploads"`
	LinkUploadID string   `bson:"link_upload_id,omitempty" json:"link_upload_id,omitempty"`

	CreatedBy string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
