package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"paygate/internal/models/request_models"
	"paygate/internal/services"
	"paygate/pkg/utils"
)

type PaycodeController struct {
	paycodeService services.PaycodeServiceInterface
}

func NewPaycodeController(paycodeService services.PaycodeServiceInterface) *PaycodeController {
	return &PaycodeController{paycodeService: paycodeService}
}

// Check godoc
// @Summary Validate a payment code
// @Description Reports structural problems and whether the trailing checksum matches.
// @Tags Paycodes
// @Accept json
// @Produce json
// @Param request body request_models.ValidatePaycodeRequest true "Code to check"
// @Success 200 {object} utils.APIResponse
// @Router /paycodes/check [post]
func (p *PaycodeController) Check(c *gin.Context) {
	var request request_models.ValidatePaycodeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	report := p.paycodeService.Validate(request.Code)
	message := "Payment code is valid"
	if !report.Valid {
		message = "Payment code is invalid"
	}
	utils.RespondSuccess(c, report, message)
}

// Mint godoc
// @Summary Seal and store the payment code of a transaction
// @Tags Paycodes
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param request body request_models.MintPaycodeRequest true "Payload ending with the checksum tag"
// @Success 200 {object} utils.APIResponse
// @Failure 422 {object} utils.APIResponse
// @Security BearerAuth
// @Router /transactions/{id}/paycode [post]
func (p *PaycodeController) Mint(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	var request request_models.MintPaycodeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	minted, err := p.paycodeService.Mint(c.Request.Context(), id, request.Payload)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, minted, "Payment code minted")
}
