// Package router wires HTTP routes to the document chat handlers.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/handler"
)

// Register mounts all document chat routes on the engine.
func Register(engine *gin.Engine, h *handler.DocChatHandler) {
	logger.Info("Registering document chat routes")

	engine.GET("/healthz", h.Healthz)
	engine.GET("/status", h.Status)

	v1 := engine.Group("/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", h.Upload)
			documents.GET("/summary", h.Summary)
			documents.GET("/suggested-questions", h.SuggestedQuestions)
		}

		chat := v1.Group("/chat")
		{
			chat.POST("/ask", h.Ask)
			chat.GET("/history", h.History)
		}
	}

	logger.Info("Document chat routes registered")
}
