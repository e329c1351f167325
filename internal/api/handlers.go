package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tunarag/internal/worker"
)

// ChatService is the operation set the transport needs from the core.
type ChatService interface {
	CreateSession(ctx context.Context) (string, error)
	Handle(ctx context.Context, sessionID, query string) (string, error)
}

// Handler wires HTTP routes to the chat service. It carries no retrieval or
// prompt logic.
type Handler struct {
	chat ChatService
}

// NewHandler constructs a Handler instance.
func NewHandler(chat ChatService) *Handler {
	return &Handler{chat: chat}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.GET("/create/session", h.createSession)
	api.POST("/create/chat", h.createChat)
}

func (h *Handler) createSession(c *gin.Context) {
	sessionID, err := h.chat.CreateSession(c.Request.Context())
	if err != nil {
		log.Printf("create session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

type queryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

func (h *Handler) createChat(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and query are required"})
		return
	}

	response, err := h.chat.Handle(c.Request.Context(), req.SessionID, req.Query)
	if err != nil {
		if errors.Is(err, worker.ErrDispatcherBusy) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
			return
		}
		log.Printf("create chat failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": response})
}
