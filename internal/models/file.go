package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MimePDF = "application/pdf"

// FileUpload is the metadata row for one stored document. Handle points into
// the blob store and must resolve for as long as the row exists.
type FileUpload struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CloneID      string             `bson:"clone_id" json:"clone_id"`
	Handle       string             `bson:"file_id" json:"file_id"`
	OriginalName string             `bson:"original_name" json:"original_name"`
	FileSize     int64              `bson:"file_size" json:"file_size"`
	MimeType     string             `bson:"mime_type" json:"mime_type"`
	PageCount    int                `bson:"page_count,omitempty" json:"page_count,omitempty"`
	UploadDate   time.Time          `bson:"upload_date" json:"upload_date"`
}
