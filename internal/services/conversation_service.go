package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/clonehub/internal/models"
	pgrepo "github.com/yoockh/clonehub/internal/repositories/postgres"
	"github.com/yoockh/clonehub/internal/utils"
	"gorm.io/datatypes"
)

const sessionCompleted = "Session completed"

// ChatTurn is one user prompt and the clone's reply.
type ChatTurn struct {
	User string `json:"user"`
	Bot  struct {
		Content string `json:"content"`
	} `json:"bot"`
}

type ConversationService interface {
	Save(ctx context.Context, userID, cloneID string, history []ChatTurn) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error)
	ListByClone(ctx context.Context, cloneID string, limit int) ([]models.Conversation, error)
}

type conversationService struct {
	convos pgrepo.ConversationRepo
	now    func() time.Time
}

func NewConversationService(convos pgrepo.ConversationRepo) ConversationService {
	return &conversationService{convos: convos, now: func() time.Time { return time.Now().UTC() }}
}

// Save stores a finished chat session as one row. Messages alternate user and
// clone and end with a completion marker.
func (s *conversationService) Save(ctx context.Context, userID, cloneID string, history []ChatTurn) (*models.Conversation, error) {
	const op = "ConversationService.Save"

	cloneID = strings.TrimSpace(cloneID)
	if userID == "" || cloneID == "" || len(history) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user, clone and chat history are required", nil)
	}

	now := s.now()
	msgs := make([]models.Message, 0, len(history)*2+1)
	for _, t := range history {
		msgs = append(msgs,
			models.Message{Role: models.RoleMessageUser, Content: t.User, Timestamp: now},
			models.Message{Role: models.RoleMessageClone, Content: t.Bot.Content, Timestamp: now},
		)
	}
	msgs = append(msgs, models.Message{Role: models.RoleMessageClone, Content: sessionCompleted, Timestamp: now})

	raw, err := json.Marshal(msgs)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode messages", err)
	}

	row := &models.Conversation{
		ID:            uuid.NewString(),
		UserID:        userID,
		CloneID:       cloneID,
		SessionID:     uuid.NewString(),
		Messages:      datatypes.JSON(raw),
		MessageCount:  len(msgs),
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if err := s.convos.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeStorage, op, "failed to save conversation", err)
	}
	return row, nil
}

func (s *conversationService) ListByUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	const op = "ConversationService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	rows, err := s.convos.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeStorage, op, "failed to list conversations", err)
	}
	return rows, nil
}

func (s *conversationService) ListByClone(ctx context.Context, cloneID string, limit int) ([]models.Conversation, error) {
	const op = "ConversationService.ListByClone"

	rows, err := s.convos.ListByClone(ctx, cloneID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeStorage, op, "failed to list conversations", err)
	}
	if len(rows) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "no conversations for clone", nil)
	}
	return rows, nil
}
