package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"knowledge-engine/services"
	"knowledge-engine/utils"
)

// SearchRequest is the body of POST /api/search. K of zero means the
// configured default; external backfill and reranking default to on.
type SearchRequest struct {
	Query           string `json:"query" binding:"required"`
	K               int    `json:"k"`
	IncludeExternal *bool  `json:"include_external"`
	Rerank          *bool  `json:"rerank"`
}

func SetupSearchRoutes(router *gin.Engine, retriever *services.Retriever) {
	api := router.Group("/api")

	api.POST("/search", func(c *gin.Context) {
		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", gin.H{"error": err.Error()})
			return
		}

		includeExternal := true
		if req.IncludeExternal != nil {
			includeExternal = *req.IncludeExternal
		}
		rerank := true
		if req.Rerank != nil {
			rerank = *req.Rerank
		}

		rctx := retriever.Retrieve(c.Request.Context(), req.Query, req.K, includeExternal, rerank)
		c.JSON(http.StatusOK, rctx)
	})
}
