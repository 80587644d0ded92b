package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/entities"
	"github.com/mrlokans/wordsync/internal/reconciler"
	"github.com/mrlokans/wordsync/internal/srs"
)

// LearningEngine is the agent-side session the UI talks to.
type LearningEngine interface {
	SignIn(ctx context.Context, userID string) error
	SignOut(ctx context.Context)
	UserID() string
	Mode() reconciler.Mode
	PendingMutations(ctx context.Context) (int, error)

	AddToCollection(ctx context.Context, word string) error
	RemoveFromCollection(ctx context.Context, word string) error
	ReviewWord(ctx context.Context, word string, quality int) (entities.ProgressRecord, error)
	Sync(ctx context.Context) (reconciler.SyncResult, error)

	IsCollected(word string) bool
	IsInProgress(word string) bool
	Collections() []entities.CollectionItem
	DueWords() []entities.ProgressRecord
	RefreshStats() entities.Stats

	Search(ctx context.Context, query string, limit int) ([]entities.WordSummary, error)
	RandomWords(ctx context.Context, count int) ([]entities.WordSummary, error)
	WordDetail(ctx context.Context, word string) (*entities.WordRecord, error)
}

type LearningController struct {
	engine LearningEngine
	log    zerolog.Logger
	now    func() time.Time
}

func NewLearningController(engine LearningEngine, log zerolog.Logger) *LearningController {
	return &LearningController{engine: engine, log: log, now: time.Now}
}

// SessionRequest is the body of POST /api/session.
type SessionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ReviewRequest is the body of POST /api/review.
type ReviewRequest struct {
	Word    string `json:"word" binding:"required"`
	Quality *int   `json:"quality" binding:"required"`
}

// ReviewResponse carries the updated record and a display label.
type ReviewResponse struct {
	Success    bool                    `json:"success"`
	Progress   entities.ProgressRecord `json:"progress"`
	NextReview string                  `json:"nextReviewLabel"`
}

// WordDetailResponse is a dictionary entry plus the user's relation to it.
type WordDetailResponse struct {
	Word       *entities.WordRecord `json:"word"`
	Collected  bool                 `json:"collected"`
	InProgress bool                 `json:"inProgress"`
}

func (lc *LearningController) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	api.GET("/session", lc.GetSession)
	api.POST("/session", lc.SignIn)
	api.DELETE("/session", lc.SignOut)
	api.POST("/sync", lc.Sync)

	api.GET("/review/options", lc.ReviewOptions)
	api.POST("/review", lc.Review)
	api.GET("/due", lc.DueWords)
	api.GET("/stats", lc.Stats)

	api.GET("/collection", lc.ListCollection)
	api.POST("/collection", lc.AddToCollection)
	api.DELETE("/collection/:word", lc.RemoveFromCollection)

	api.GET("/search", lc.Search)
	api.GET("/random", lc.RandomWords)
	api.GET("/words/:word", lc.WordDetail)
}

// GetSession handles GET /api/session
func (lc *LearningController) GetSession(c *gin.Context) {
	data := gin.H{
		"user_id": lc.engine.UserID(),
		"mode":    lc.engine.Mode(),
	}
	if pending, err := lc.engine.PendingMutations(c.Request.Context()); err == nil {
		data["pending"] = pending
	}
	respondSuccess(c, data)
}

// SignIn handles POST /api/session
func (lc *LearningController) SignIn(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "user_id is required")
		return
	}
	if err := lc.engine.SignIn(c.Request.Context(), req.UserID); err != nil {
		respondError(c, lc.log, err, "sign in")
		return
	}
	respondSuccess(c, gin.H{"user_id": req.UserID})
}

// SignOut handles DELETE /api/session
func (lc *LearningController) SignOut(c *gin.Context) {
	lc.engine.SignOut(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "signed out"})
}

// Sync handles POST /api/sync
func (lc *LearningController) Sync(c *gin.Context) {
	result, err := lc.engine.Sync(c.Request.Context())
	if err != nil {
		respondError(c, lc.log, err, "sync")
		return
	}
	respondSuccess(c, result)
}

// ReviewOptions handles GET /api/review/options
func (lc *LearningController) ReviewOptions(c *gin.Context) {
	respondSuccess(c, srs.SimpleQualityOptions())
}

// Review handles POST /api/review
func (lc *LearningController) Review(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "word and quality are required")
		return
	}

	record, err := lc.engine.ReviewWord(c.Request.Context(), req.Word, *req.Quality)
	if err != nil {
		respondError(c, lc.log, err, "review word")
		return
	}
	c.JSON(http.StatusOK, ReviewResponse{
		Success:    true,
		Progress:   record,
		NextReview: srs.FormatNextReview(record.NextReview, lc.now()),
	})
}

// DueWords handles GET /api/due
func (lc *LearningController) DueWords(c *gin.Context) {
	respondSuccess(c, lc.engine.DueWords())
}

// Stats handles GET /api/stats
func (lc *LearningController) Stats(c *gin.Context) {
	respondSuccess(c, lc.engine.RefreshStats())
}

// ListCollection handles GET /api/collection
func (lc *LearningController) ListCollection(c *gin.Context) {
	respondSuccess(c, lc.engine.Collections())
}

// AddToCollection handles POST /api/collection
func (lc *LearningController) AddToCollection(c *gin.Context) {
	var req AddCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "word is required")
		return
	}
	if err := lc.engine.AddToCollection(c.Request.Context(), req.Word); err != nil {
		respondError(c, lc.log, err, "add to collection")
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Message: "added"})
}

// RemoveFromCollection handles DELETE /api/collection/:word
func (lc *LearningController) RemoveFromCollection(c *gin.Context) {
	word, ok := requireParam(c, "word")
	if !ok {
		return
	}
	if err := lc.engine.RemoveFromCollection(c.Request.Context(), word); err != nil {
		respondError(c, lc.log, err, "remove from collection")
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "removed"})
}

// Search handles GET /api/search?q=...&limit=... An empty q matches nothing.
func (lc *LearningController) Search(c *gin.Context) {
	query := c.Query("q")
	limit, ok := parseLimitQuery(c, "limit", 0, 100)
	if !ok {
		return
	}
	results, err := lc.engine.Search(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, lc.log, err, "search")
		return
	}
	respondSuccess(c, results)
}

// RandomWords handles GET /api/random?count=...
func (lc *LearningController) RandomWords(c *gin.Context) {
	count, ok := parseLimitQuery(c, "count", 10, 100)
	if !ok {
		return
	}
	words, err := lc.engine.RandomWords(c.Request.Context(), count)
	if err != nil {
		respondError(c, lc.log, err, "random words")
		return
	}
	respondSuccess(c, words)
}

// WordDetail handles GET /api/words/:word
func (lc *LearningController) WordDetail(c *gin.Context) {
	word, ok := requireParam(c, "word")
	if !ok {
		return
	}
	record, err := lc.engine.WordDetail(c.Request.Context(), word)
	if err != nil {
		respondError(c, lc.log, err, "word detail")
		return
	}
	respondSuccess(c, WordDetailResponse{
		Word:       record,
		Collected:  lc.engine.IsCollected(word),
		InProgress: lc.engine.IsInProgress(word),
	})
}
