package controller

import (
	"context"
	"strconv"
	"strings"

	"codedrill/internal/submit/repository"
	"codedrill/internal/submit/service"
	"codedrill/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmissionService is the grading surface used by the HTTP layer.
type SubmissionService interface {
	Submit(ctx context.Context, input service.SubmitInput) (service.SubmitResult, error)
	ListByTask(ctx context.Context, taskID string, limit int) ([]*repository.Submission, error)
	StatsByTask(ctx context.Context, taskID string) (repository.TaskStats, error)
}

// SubmitController handles submission HTTP endpoints.
type SubmitController struct {
	submitService SubmissionService
}

// NewSubmitController creates a new SubmitController.
func NewSubmitController(submitService SubmissionService) *SubmitController {
	return &SubmitController{submitService: submitService}
}

// Create grades a submission synchronously.
func (h *SubmitController) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	res, err := h.submitService.Submit(c.Request.Context(), service.SubmitInput{
		TaskID:           strings.TrimSpace(req.TaskID),
		UserCode:         req.UserCode,
		ReviewAnswers:    req.ReviewAnswers,
		FoundIssues:      req.FoundIssues,
		ImprovedCode:     req.ImprovedCode,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Write != nil {
		response.Success(c, res.Write)
		return
	}
	response.Success(c, res.Review)
}

// ListByTask returns recent submissions for a task.
func (h *SubmitController) ListByTask(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		response.BadRequest(c, "Invalid task id")
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(c, "Invalid limit")
			return
		}
		limit = parsed
	}
	items, err := h.submitService.ListByTask(c.Request.Context(), taskID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toSubmissionResponse(item))
	}
	response.Success(c, ListResponse{Items: out})
}

// Stats returns aggregate submission statistics for a task.
func (h *SubmitController) Stats(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		response.BadRequest(c, "Invalid task id")
		return
	}
	stats, err := h.submitService.StatsByTask(c.Request.Context(), taskID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// SubmitRequest defines submission payload.
type SubmitRequest struct {
	TaskID           string   `json:"task_id" binding:"required"`
	UserCode         string   `json:"user_code"`
	ReviewAnswers    []string `json:"review_answers"`
	FoundIssues      []string `json:"found_issues"`
	ImprovedCode     string   `json:"improved_code"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
}

// SubmissionResponse is one stored submission.
type SubmissionResponse struct {
	SubmissionID     string  `json:"submission_id"`
	TaskID           string  `json:"task_id"`
	Kind             string  `json:"kind"`
	Passed           bool    `json:"passed"`
	Score            float64 `json:"score"`
	Attempt          int     `json:"attempt"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
	CreatedAt        string  `json:"created_at"`
}

// ListResponse wraps a submission listing.
type ListResponse struct {
	Items []SubmissionResponse `json:"items"`
}

func toSubmissionResponse(s *repository.Submission) SubmissionResponse {
	return SubmissionResponse{
		SubmissionID:     s.ID,
		TaskID:           s.TaskID,
		Kind:             string(s.Kind),
		Passed:           s.Passed,
		Score:            s.Score,
		Attempt:          s.Attempt,
		TimeSpentSeconds: s.TimeSpentSeconds,
		CreatedAt:        s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
