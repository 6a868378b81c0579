package pipeline

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legal-backend/internal/documents"
	"legal-backend/internal/shared/server/middleware"
	"legal-backend/internal/shared/server/respond"
)

// Handler exposes the synchronous processing trigger.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches pipeline routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:id/process", h.process)
}

func (h *Handler) process(c *gin.Context) {
	id := c.Param("id")
	middleware.SetDocument(c, id)
	ctx := c.Request.Context()

	result, err := h.Svc.Submit(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		if errors.Is(err, ErrExtraction) || errors.Is(err, ErrModelInvocation) {
			middleware.SetStatusTransition(c, string(documents.StatusProcessing), string(documents.StatusFailed))
		}
		respond.Error(c, http.StatusInternalServerError, "processing_failed", "document processing failed", nil)
		return
	}
	middleware.SetStatusTransition(c, string(documents.StatusProcessing), string(documents.StatusCompleted))

	doc, err := h.Svc.Orchestrator.Docs.GetByID(ctx, id)
	if err != nil {
		respond.OK(c, gin.H{
			"id":       id,
			"status":   documents.StatusCompleted,
			"analysis": result,
		})
		return
	}
	respond.OK(c, doc)
}
