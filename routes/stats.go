package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"knowledge-engine/internal/queue"
	"knowledge-engine/internal/vectorindex"
	"knowledge-engine/services"
	"knowledge-engine/utils"
)

func SetupStatsRoutes(router *gin.Engine, engine *services.MemoryEngine, index vectorindex.Store, asynqClient *asynq.Client) {
	api := router.Group("/api")

	api.GET("/stats", func(c *gin.Context) {
		indexStats, err := index.Stats(c.Request.Context())
		if err != nil {
			utils.RespondWithServiceUnavailable(c, "Vector index unavailable")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"index":  indexStats,
			"memory": engine.Stats(),
		})
	})

	// Maintenance triggers, normally driven by the scheduler.
	api.POST("/memory/refresh", func(c *gin.Context) {
		refreshed := engine.RefreshPopularContent(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"documents_refreshed": refreshed})
	})

	// Async variant: one task per popular topic, drained by the worker.
	api.POST("/memory/refresh/async", func(c *gin.Context) {
		topics := engine.Stats().PopularTopics
		if len(topics) > 3 {
			topics = topics[:3]
		}

		enqueued := make([]string, 0, len(topics))
		for _, topic := range topics {
			task, err := queue.NewRefreshTopicTask(topic)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to build refresh task", gin.H{"error": err.Error()})
				return
			}
			if _, err := asynqClient.Enqueue(task); err != nil {
				utils.RespondWithInternalError(c, "Failed to enqueue refresh", gin.H{"error": err.Error()})
				return
			}
			enqueued = append(enqueued, topic)
		}

		c.JSON(http.StatusAccepted, gin.H{"topics_enqueued": enqueued})
	})

	api.POST("/memory/consolidate", func(c *gin.Context) {
		removed, err := engine.ConsolidateDuplicates(c.Request.Context())
		if err != nil {
			utils.RespondWithServiceUnavailable(c, "Vector index unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"chunks_removed": removed})
	})
}
