package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"knowledge-engine/internal/queue"
	"knowledge-engine/internal/vectorindex"
	"knowledge-engine/models"
	"knowledge-engine/services"
	"knowledge-engine/utils"
)

func SetupDocumentRoutes(
	router *gin.Engine,
	engine *services.MemoryEngine,
	index vectorindex.Store,
	asynqClient *asynq.Client,
) {
	api := router.Group("/api")

	// Synchronous ingestion: chunk, embed and index before responding.
	api.POST("/documents", func(c *gin.Context) {
		var doc models.Document
		if err := c.ShouldBindJSON(&doc); err != nil {
			utils.RespondWithBadRequest(c, "Invalid document", gin.H{"error": err.Error()})
			return
		}
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}

		landed, err := engine.TrackAndAdd(c.Request.Context(), doc)
		if err != nil {
			if errors.Is(err, models.ErrMalformedDocument) {
				utils.RespondWithBadRequest(c, "Malformed document", gin.H{"error": err.Error()})
				return
			}
			utils.RespondWithInternalError(c, "Failed to ingest document", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"document_id":    doc.ID,
			"chunks_written": landed,
		})
	})

	// Async ingestion: enqueue and return immediately.
	api.POST("/documents/async", func(c *gin.Context) {
		var doc models.Document
		if err := c.ShouldBindJSON(&doc); err != nil {
			utils.RespondWithBadRequest(c, "Invalid document", gin.H{"error": err.Error()})
			return
		}
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		if err := doc.Validate(); err != nil {
			utils.RespondWithBadRequest(c, "Malformed document", gin.H{"error": err.Error()})
			return
		}

		task, err := queue.NewIngestDocumentTask(doc)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build ingest task", gin.H{"error": err.Error()})
			return
		}

		info, err := asynqClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue document", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"document_id": doc.ID,
			"task_id":     info.ID,
			"queue":       info.Queue,
		})
	})

	// Conditional update: reindex only when content changed.
	api.PUT("/documents/:id", func(c *gin.Context) {
		var doc models.Document
		if err := c.ShouldBindJSON(&doc); err != nil {
			utils.RespondWithBadRequest(c, "Invalid document", gin.H{"error": err.Error()})
			return
		}
		doc.ID = c.Param("id")

		updated, err := engine.UpdateDocumentIfChanged(c.Request.Context(), doc)
		if err != nil {
			if errors.Is(err, models.ErrMalformedDocument) {
				utils.RespondWithBadRequest(c, "Malformed document", gin.H{"error": err.Error()})
				return
			}
			utils.RespondWithInternalError(c, "Failed to update document", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id": doc.ID,
			"updated":     updated,
		})
	})

	api.DELETE("/documents/:id", func(c *gin.Context) {
		removed, err := index.DeleteByDocumentID(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithServiceUnavailable(c, "Vector index unavailable")
			return
		}
		if removed == 0 {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id":    c.Param("id"),
			"chunks_removed": removed,
		})
	})
}
