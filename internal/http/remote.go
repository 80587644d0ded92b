package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/dictionary"
	"github.com/mrlokans/wordsync/internal/entities"
	"github.com/mrlokans/wordsync/internal/remote"
)

// RemoteController serves the authoritative per-user store over REST.
type RemoteController struct {
	store remote.Store
	log   zerolog.Logger
}

func NewRemoteController(store remote.Store, log zerolog.Logger) *RemoteController {
	return &RemoteController{store: store, log: log}
}

// AddCollectionRequest is the body of POST /api/users/:user_id/collections.
type AddCollectionRequest struct {
	Word string `json:"word" binding:"required"`
}

func (rc *RemoteController) RegisterRoutes(router gin.IRouter) {
	users := router.Group("/api/users/:user_id")
	users.GET("/collections", rc.ListCollections)
	users.POST("/collections", rc.InsertCollection)
	users.DELETE("/collections/:word", rc.DeleteCollection)
	users.GET("/progress", rc.ListProgress)
	users.PUT("/progress/:word", rc.UpsertProgress)
}

// ListCollections handles GET /api/users/:user_id/collections
func (rc *RemoteController) ListCollections(c *gin.Context) {
	userID, ok := requireParam(c, "user_id")
	if !ok {
		return
	}
	items, err := rc.store.ListCollections(c.Request.Context(), userID)
	if err != nil {
		respondError(c, rc.log, err, "list collections")
		return
	}
	c.JSON(http.StatusOK, items)
}

// InsertCollection handles POST /api/users/:user_id/collections
func (rc *RemoteController) InsertCollection(c *gin.Context) {
	userID, ok := requireParam(c, "user_id")
	if !ok {
		return
	}
	var req AddCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "word is required")
		return
	}
	word := dictionary.Normalize(req.Word)
	if word == "" {
		respondBadRequest(c, "word is required")
		return
	}

	item, err := rc.store.InsertCollection(c.Request.Context(), userID, word)
	if err != nil {
		respondError(c, rc.log, err, "insert collection")
		return
	}
	respondCreated(c, item)
}

// DeleteCollection handles DELETE /api/users/:user_id/collections/:word
func (rc *RemoteController) DeleteCollection(c *gin.Context) {
	userID, ok := requireParam(c, "user_id")
	if !ok {
		return
	}
	word := dictionary.Normalize(c.Param("word"))
	if err := rc.store.DeleteCollection(c.Request.Context(), userID, word); err != nil {
		respondError(c, rc.log, err, "delete collection")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListProgress handles GET /api/users/:user_id/progress
func (rc *RemoteController) ListProgress(c *gin.Context) {
	userID, ok := requireParam(c, "user_id")
	if !ok {
		return
	}
	records, err := rc.store.ListProgress(c.Request.Context(), userID)
	if err != nil {
		respondError(c, rc.log, err, "list progress")
		return
	}
	c.JSON(http.StatusOK, records)
}

// UpsertProgress handles PUT /api/users/:user_id/progress/:word
func (rc *RemoteController) UpsertProgress(c *gin.Context) {
	userID, ok := requireParam(c, "user_id")
	if !ok {
		return
	}
	word := dictionary.Normalize(c.Param("word"))
	if word == "" {
		respondBadRequest(c, "word is required")
		return
	}

	var update entities.ProgressUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, "invalid progress payload")
		return
	}
	if update.EaseFactor < entities.MinEaseFactor || update.Interval < 0 || update.Repetitions < 0 {
		respondBadRequest(c, "progress values out of range")
		return
	}

	record, err := rc.store.UpsertProgress(c.Request.Context(), userID, word, update)
	if err != nil {
		respondError(c, rc.log, err, "upsert progress")
		return
	}
	c.JSON(http.StatusOK, record)
}
