package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Server bundles dependencies for HTTP handlers.
type Server struct {
	store  TaskStore
	logger *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(store TaskStore, logger *slog.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// RegisterRoutes attaches handlers to the provided Gin router group.
func (s *Server) RegisterRoutes(routes gin.IRoutes) {
	routes.POST("/scans", s.createScanHandler)
	routes.GET("/scans/:id", s.getScanHandler)
}

// @Summary      Create a new scan task
// @Description  Queue a TCP connect scan of one target over an inclusive port range. The handler validates input, stores the task and enqueues it for background workers before returning a UUID.
// @Description  Poll GET /scans/{id} to follow the task through pending, running and completed or failed.
// @Tags         Scans
// @Accept       json
// @Produce      json
// @Param        scanRequest  body      CreateScanRequest     true  "Scan request parameters"
// @Success      202          {object}  ScanAcceptedResponse  "Scan accepted"
// @Failure      400          {object}  ErrorResponse         "Malformed JSON body or failed validation"
// @Failure      401          {object}  ErrorResponse         "Missing or incorrect API key"
// @Failure      429          {object}  ErrorResponse         "Rate limit exceeded"
// @Failure      500          {object}  ErrorResponse         "Task could not be stored or queued"
// @Security     ApiKeyAuth
// @Router       /scans [post]
func (s *Server) createScanHandler(c *gin.Context) {
	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid request payload: %v", err))
		return
	}

	task, err := req.newTask()
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if task.ID, err = generateUUID(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to generate task id")
		return
	}

	ctx := c.Request.Context()
	if err := s.store.CreateTask(ctx, task); err != nil {
		s.logger.Error("failed to persist task", "task_id", task.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to persist task")
		return
	}

	if err := s.store.PushToQueue(ctx, task.ID); err != nil {
		// The task exists but no worker will ever see it; record that for pollers.
		failTask(ctx, task, s.store, s.logger, errors.New("failed to queue task"))
		respondError(c, http.StatusInternalServerError, "failed to queue task")
		return
	}

	s.logger.Info("scan task queued",
		"task_id", task.ID,
		"target", task.Target,
		"start_port", task.StartPort,
		"end_port", task.EndPort,
	)
	c.JSON(http.StatusAccepted, ScanAcceptedResponse{ID: task.ID, Status: task.Status})
}

// @Summary      Get scan status and results
// @Description  Retrieve a snapshot of a scan task. Once completed, findings lists every open port ascending with the banner read from it and a service label.
// @Tags         Scans
// @Produce      json
// @Param        id   path      string            true  "Scan Task ID (UUID v4)"
// @Success      200  {object}  ScanTaskResponse  "Current task snapshot"
// @Failure      400  {object}  ErrorResponse     "Malformed task identifier"
// @Failure      401  {object}  ErrorResponse     "Missing or incorrect API key"
// @Failure      404  {object}  ErrorResponse     "Task does not exist or has expired"
// @Failure      429  {object}  ErrorResponse     "Rate limit exceeded"
// @Failure      500  {object}  ErrorResponse     "Task could not be loaded"
// @Security     ApiKeyAuth
// @Router       /scans/{id} [get]
func (s *Server) getScanHandler(c *gin.Context) {
	id := c.Param("id")
	if !uuidV4Pattern.MatchString(id) {
		respondError(c, http.StatusBadRequest, "invalid task id format")
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), id)
	switch {
	case errors.Is(err, ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "task not found")
		return
	case err != nil:
		s.logger.Error("failed to load task", "task_id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to load task")
		return
	}

	c.JSON(http.StatusOK, newScanTaskResponse(task))
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Error: msg})
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
