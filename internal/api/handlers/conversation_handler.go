package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/clonehub/internal/services"
	"github.com/yoockh/clonehub/internal/utils"
)

type ConversationHandler struct {
	svc services.ConversationService
}

func NewConversationHandler(svc services.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type saveConversationRequest struct {
	ChatHistory []services.ChatTurn `json:"chatHistory" binding:"required"`
	Folder      string              `json:"folder" binding:"required"`
}

func (h *ConversationHandler) Save(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req saveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ConversationHandler.Save", "chatHistory and folder are required", err))
		return
	}

	row, err := h.svc.Save(c.Request.Context(), userID, req.Folder, req.ChatHistory)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Conversation saved successfully",
		"sessionId":    row.SessionID,
		"messageCount": row.MessageCount,
	})
}

func (h *ConversationHandler) ListMine(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		writeError(c, err)
		return
	}

	rows, err := h.svc.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": rows})
}

func (h *ConversationHandler) ListByClone(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		writeError(c, err)
		return
	}

	cloneID := c.Param("cloneId")
	rows, err := h.svc.ListByClone(c.Request.Context(), cloneID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clone_id": cloneID, "conversations": rows})
}
