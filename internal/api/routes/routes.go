package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yoockh/clonehub/internal/api/handlers"
	"github.com/yoockh/clonehub/internal/api/middleware"
	"github.com/yoockh/clonehub/internal/models"
)

type Deps struct {
	Clone *handlers.CloneHandler
	File  *handlers.FileHandler
	// Conversation is nil when Postgres is not configured.
	Conversation *handlers.ConversationHandler

	JWT middleware.JWTConfig
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	clone := r.Group("/clone")
	clone.POST("/create", middleware.OptionalJWT(d.JWT), d.Clone.Create)
	clone.GET("/all", d.Clone.List)
	clone.GET("/ui", d.Clone.UI)
	clone.GET("/ui/:id", d.Clone.UI)
	clone.GET("/files/:id", d.File.ListByClone)
	clone.GET("/:id", d.Clone.Get)
	clone.POST("/:id/upload/pdf", d.Clone.UploadDocuments)
	clone.POST("/:id/upload/:bucket", d.Clone.ReplaceLinks)
	clone.PUT("/:id/status", middleware.JWTAuth(d.JWT), middleware.RequireRole(string(models.RoleAdmin)), d.Clone.SetStatus)

	r.GET("/file/:fileId", d.File.Stream)

	if d.Conversation != nil {
		conv := r.Group("/conversation")
		conv.Use(middleware.JWTAuth(d.JWT))
		conv.POST("/save", d.Conversation.Save)
		conv.GET("", d.Conversation.ListMine)
		conv.GET("/clone/:cloneId", d.Conversation.ListByClone)
	}
}
