package postgres

import (
	"context"

	"github.com/yoockh/clonehub/internal/models"
	"gorm.io/gorm"
)

type ConversationRepo interface {
	Insert(ctx context.Context, c *models.Conversation) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error)
	ListByClone(ctx context.Context, cloneID string, limit int) ([]models.Conversation, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Insert(ctx context.Context, c *models.Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *conversationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	return r.list(ctx, "user_id = ?", userID, limit)
}

func (r *conversationRepo) ListByClone(ctx context.Context, cloneID string, limit int) ([]models.Conversation, error) {
	return r.list(ctx, "clone_id = ?", cloneID, limit)
}

func (r *conversationRepo) list(ctx context.Context, where string, arg string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Conversation
	err := r.db.WithContext(ctx).
		Where(where, arg).
		Order("last_message_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
