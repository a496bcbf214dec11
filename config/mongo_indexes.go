package config

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := db.Collection("clones").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clone_id", Value: 1}},
			Options: options.Index().SetName("uniq_clone_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_created"),
		},
	})
	if err != nil {
		return err
	}

	// document listing: newest first per clone
	_, err = db.Collection("files").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "clone_id", Value: 1}, {Key: "upload_date", Value: -1}, {Key: "_id", Value: -1}},
		Options: options.Index().SetName("by_clone_upload_date"),
	})
	if err != nil {
		return err
	}

	// one link collection per clone; ReplaceBucket upserts on it
	_, err = db.Collection("link_uploads").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "clone_id", Value: 1}},
		Options: options.Index().SetName("uniq_clone_id").SetUnique(true),
	})
	return err
}
