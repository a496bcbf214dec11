package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/clonehub/internal/models"
	"github.com/yoockh/clonehub/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CloneRepository exposes per-field updates only, so concurrent ingestion
// tasks never overwrite each other's reference fields.
type CloneRepository interface {
	Create(ctx context.Context, c *models.Clone) error
	GetByCloneID(ctx context.Context, cloneID string) (*models.Clone, error)
	List(ctx context.Context, limit int64) ([]models.Clone, error)
	SetImage(ctx context.Context, cloneID, image string) error
	AddFileUploads(ctx context.Context, cloneID string, fileIDs []string) error
	SetLinkUpload(ctx context.Context, cloneID, linkUploadID string) error
	SetStatus(ctx context.Context, cloneID string, status models.CloneStatus) error
}

type cloneRepo struct {
	col *mongo.Collection
}

func NewCloneRepo(db *mongo.Database) CloneRepository {
	return &cloneRepo{col: db.Collection("clones")}
}

func (r *cloneRepo) Create(ctx context.Context, c *models.Clone) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	if c.FileUploads == nil {
		c.FileUploads = []string{}
	}

	res, err := r.col.InsertOne(ctx, c)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = oid
	}
	return nil
}

func (r *cloneRepo) GetByCloneID(ctx context.Context, cloneID string) (*models.Clone, error) {
	var c models.Clone
	err := r.col.FindOne(ctx, bson.M{"clone_id": cloneID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cloneRepo) List(ctx context.Context, limit int64) ([]models.Clone, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := r.col.Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Clone{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cloneRepo) SetImage(ctx context.Context, cloneID, image string) error {
	return r.update(ctx, cloneID, bson.M{"$set": bson.M{"image": image}})
}

func (r *cloneRepo) AddFileUploads(ctx context.Context, cloneID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return r.update(ctx, cloneID, bson.M{"$push": bson.M{"file_uploads": bson.M{"$each": fileIDs}}})
}

func (r *cloneRepo) SetLinkUpload(ctx context.Context, cloneID, linkUploadID string) error {
	return r.update(ctx, cloneID, bson.M{"$set": bson.M{"link_upload_id": linkUploadID}})
}

func (r *cloneRepo) SetStatus(ctx context.Context, cloneID string, status models.CloneStatus) error {
	return r.update(ctx, cloneID, bson.M{"$set": bson.M{"status": status}})
}

func (r *cloneRepo) update(ctx context.Context, cloneID string, update bson.M) error {
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updated_at"] = time.Now().UTC()

	res, err := r.col.UpdateOne(ctx, bson.M{"clone_id": cloneID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
