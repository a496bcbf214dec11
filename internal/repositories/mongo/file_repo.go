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

type FileRepository interface {
	Insert(ctx context.Context, f *models.FileUpload) error
	GetByID(ctx context.Context, id string) (*models.FileUpload, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.FileUpload, error)
	ListByClone(ctx context.Context, cloneID string, skip, limit int64) ([]models.FileUpload, error)
	CountByClone(ctx context.Context, cloneID string) (int64, error)
}

type fileRepo struct {
	col *mongo.Collection
}

func NewFileRepo(db *mongo.Database) FileRepository {
	return &fileRepo{col: db.Collection("files")}
}

func (r *fileRepo) Insert(ctx context.Context, f *models.FileUpload) error {
	if f.UploadDate.IsZero() {
		f.UploadDate = time.Now().UTC()
	}
	res, err := r.col.InsertOne(ctx, f)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		f.ID = oid
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*models.FileUpload, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}

	var f models.FileUpload
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByIDs silently ignores ids that are not valid object ids.
func (r *fileRepo) GetByIDs(ctx context.Context, ids []string) ([]models.FileUpload, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	out := []models.FileUpload{}
	if len(oids) == 0 {
		return out, nil
	}

	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": oids}},
		options.Find().SetSort(bson.D{{Key: "upload_date", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fileRepo) ListByClone(ctx context.Context, cloneID string, skip, limit int64) ([]models.FileUpload, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"clone_id": cloneID},
		options.Find().
			SetSort(bson.D{{Key: "upload_date", Value: -1}, {Key: "_id", Value: -1}}).
			SetSkip(skip).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.FileUpload{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fileRepo) CountByClone(ctx context.Context, cloneID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"clone_id": cloneID})
}
