package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"paygate/internal/models/request_models"
	"paygate/internal/models/response_models"
	"paygate/internal/repositories"
	"paygate/internal/services"
	"paygate/pkg/jobqueue"
	"paygate/pkg/utils"
)

type NotificationController struct {
	runner   services.TickRunner
	attempts repositories.JobAttemptRepository
}

func NewNotificationController(runner services.TickRunner, attempts repositories.JobAttemptRepository) *NotificationController {
	return &NotificationController{runner: runner, attempts: attempts}
}

// Broadcast godoc
// @Summary Run the alert broadcaster now
// @Description Optionally limited to one bot. Fails with 409 while a scheduled run is in progress.
// @Tags Notifications
// @Accept json
// @Produce json
// @Param request body request_models.BroadcastRequest false "Broadcast Request"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /alerts/broadcast [post]
func (n *NotificationController) Broadcast(c *gin.Context) {
	var request request_models.BroadcastRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	var botID *uuid.UUID
	if request.BotID != "" {
		id, err := uuid.Parse(request.BotID)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, "Invalid bot id")
			return
		}
		botID = &id
	}

	summary, err := n.runner.RunAlerts(c.Request.Context(), botID, holderOf(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, summary, "Broadcast finished")
}

// ScheduleDownsells godoc
// @Summary Run the downsell scheduling scan now
// @Tags Notifications
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /downsells/schedule [post]
func (n *NotificationController) ScheduleDownsells(c *gin.Context) {
	summary, err := n.runner.RunDownsells(c.Request.Context(), holderOf(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, summary, "Downsell scan finished")
}

// ListJobAttempts godoc
// @Summary List recent terminal job results
// @Description Defaults to dead letters. Use outcome=all for every outcome.
// @Tags Notifications
// @Produce json
// @Param outcome query string false "dead | skipped | succeeded | all"
// @Param limit query int false "Max rows, up to 100"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /jobs/attempts [get]
func (n *NotificationController) ListJobAttempts(c *gin.Context) {
	outcome := c.DefaultQuery("outcome", string(jobqueue.OutcomeDead))
	switch outcome {
	case "all":
		outcome = ""
	case string(jobqueue.OutcomeDead), string(jobqueue.OutcomeSkipped), string(jobqueue.OutcomeSucceeded):
	default:
		utils.RespondError(c, http.StatusBadRequest, "Unknown outcome")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	rows, err := n.attempts.ListRecent(c.Request.Context(), outcome, limit)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	out := make([]response_models.JobAttemptResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, response_models.JobAttemptResponse{
			JobID:     r.JobID,
			Kind:      r.Kind,
			Consumer:  r.Consumer,
			Outcome:   r.Outcome,
			Attempts:  r.AttemptCount,
			LastError: r.LastError,
			At:        utils.FormatRFC3339(utils.FromUnixSeconds(r.CreatedAt, time.UTC)),
		})
	}
	utils.RespondSuccess(c, out, "Job attempts retrieved successfully")
}

func holderOf(c *gin.Context) string {
	if subject := c.GetString("subject"); subject != "" {
		return "manual:" + subject
	}
	return "manual"
}
