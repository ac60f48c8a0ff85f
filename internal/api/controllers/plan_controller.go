package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"paygate/internal/services"
	"paygate/pkg/utils"
)

type PlanController struct {
	planService services.PlanServiceInterface
}

func NewPlanController(planService services.PlanServiceInterface) *PlanController {
	return &PlanController{planService: planService}
}

// ListPlans godoc
// @Summary List the plans a bot sells
// @Tags Plans
// @Produce json
// @Param botId path string true "Bot ID"
// @Param all query bool false "Include inactive plans"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /bots/{botId}/plans [get]
func (p *PlanController) ListPlans(c *gin.Context) {
	botID, err := uuid.Parse(c.Param("botId"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid bot id")
		return
	}

	plans, err := p.planService.ListPlans(c.Request.Context(), botID, c.Query("all") != "true")
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, plans, "Plans retrieved successfully")
}
