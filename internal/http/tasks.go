package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/wordsync/internal/tasks"
	"github.com/mrlokans/wordsync/internal/wordcache"
)

// TaskQueue is the subset of tasks.Client the controller needs.
type TaskQueue interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// TasksController handles task queue management endpoints.
type TasksController struct {
	client TaskQueue
	userID func() string
}

// NewTasksController creates a new TasksController. userID reports the
// signed-in user that drain tasks run for.
func NewTasksController(client TaskQueue, userID func() string) *TasksController {
	return &TasksController{client: client, userID: userID}
}

// TaskTypeInfo describes an available task type.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// RunTaskRequest is the request body for running a task.
type RunTaskRequest struct {
	// Words overrides the default warm-up list for preload_words.
	Words []string `json:"words,omitempty"`
}

// ListTaskTypes handles GET /api/tasks/types
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	types := []TaskTypeInfo{
		{
			Type:        "drain_sync_queue",
			Description: "Replay the signed-in user's queued mutations",
			Queue:       tasks.DrainQueueTask{}.Config().Name,
		},
		{
			Type:        "preload_words",
			Description: "Fetch common words into the word cache",
			Queue:       tasks.PreloadWordsTask{}.Config().Name,
		},
		{
			Type:        "preload_groups",
			Description: "Fetch the first index words of common initial letters",
			Queue:       tasks.PreloadWordsTask{}.Config().Name,
		},
	}

	c.JSON(http.StatusOK, gin.H{
		"task_types": types,
	})
}

// GetTaskStatus handles GET /api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID, ok := requireParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "internal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// RunTask handles POST /api/tasks/:type/run
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	var req RunTaskRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}

	var task backlite.Task
	switch taskType {
	case "drain_sync_queue":
		userID := tc.userID()
		if userID == "" {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "sign in required", Code: "sign_in_required"})
			return
		}
		task = tasks.DrainQueueTask{UserID: userID}

	case "preload_words":
		words := req.Words
		if len(words) == 0 {
			words = wordcache.CommonWords
		}
		task = tasks.PreloadWordsTask{Words: words}

	case "preload_groups":
		task = tasks.PreloadWordsTask{Letters: wordcache.CommonLetters, PerGroup: wordcache.CommonGroupSize}

	default:
		respondBadRequest(c, fmt.Sprintf("unknown task type: %s", taskType))
		return
	}

	ids, err := tc.client.Add(task).Ctx(c.Request.Context()).Save()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "internal"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task_id": ids[0],
		"type":    taskType,
		"message": "task enqueued",
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
