package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yoockh/clonehub/internal/models"
	"github.com/yoockh/clonehub/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LinkRepository interface {
	Create(ctx context.Context, l *models.LinkUpload) error
	GetByID(ctx context.Context, id string) (*models.LinkUpload, error)
	// ReplaceBucket overwrites one bucket of the clone's collection, creating
	// the collection (with the other bucket empty) when it does not exist.
	ReplaceBucket(ctx context.Context, cloneID string, bucket models.LinkBucket, links []string) (*models.LinkUpload, error)
}

type linkRepo struct {
	col *mongo.Collection
}

func NewLinkRepo(db *mongo.Database) LinkRepository {
	return &linkRepo{col: db.Collection("link_uploads")}
}

func bucketField(b models.LinkBucket) (string, string, error) {
	switch b {
	case models.BucketYoutube:
		return "youtube_links", "other_links", nil
	case models.BucketOther:
		return "other_links", "youtube_links", nil
	default:
		return "", "", fmt.Errorf("unknown link bucket %q", b)
	}
}

func (r *linkRepo) Create(ctx context.Context, l *models.LinkUpload) error {
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	if l.YoutubeLinks == nil {
		l.YoutubeLinks = []string{}
	}
	if l.OtherLinks == nil {
		l.OtherLinks = []string{}
	}

	res, err := r.col.InsertOne(ctx, l)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		l.ID = oid
	}
	return nil
}

func (r *linkRepo) GetByID(ctx context.Context, id string) (*models.LinkUpload, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}

	var l models.LinkUpload
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *linkRepo) ReplaceBucket(ctx context.Context, cloneID string, bucket models.LinkBucket, links []string) (*models.LinkUpload, error) {
	field, other, err := bucketField(bucket)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []string{}
	}

	now := time.Now().UTC()
	var out models.LinkUpload
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"clone_id": cloneID},
		bson.M{
			"$set":         bson.M{field: links, "updated_at": now},
			"$setOnInsert": bson.M{other: []string{}, "created_at": now},
		},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
