package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LinkUpload struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CloneID      string             `bson:"clone_id" json:"clone_id"`
	YoutubeLinks []string           `bson:"youtube_links" json:"youtube_links"`
	OtherLinks   []string           `bson:"other_links" json:"other_links"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

type LinkBucket string

const (
	BucketYoutube LinkBucket = "youtube"
	BucketOther   LinkBucket = "other"
)
