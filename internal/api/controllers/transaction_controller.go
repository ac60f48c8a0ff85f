package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"paygate/internal/models/db_models"
	"paygate/internal/models/request_models"
	"paygate/internal/models/response_models"
	"paygate/internal/services"
	"paygate/pkg/utils"
)

type TransactionController struct {
	transactionService services.TransactionServiceInterface
}

func NewTransactionController(transactionService services.TransactionServiceInterface) *TransactionController {
	return &TransactionController{
		transactionService: transactionService,
	}
}

// CreateTransaction godoc
// @Summary Start a payment flow
// @Description Creates a transaction for a plan. Amount and currency are taken from the plan.
// @Tags Transactions
// @Accept json
// @Produce json
// @Param request body request_models.CreateTransactionRequest true "Create Transaction Request"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /transactions [post]
func (t *TransactionController) CreateTransaction(c *gin.Context) {
	var request request_models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	txn, events, err := t.transactionService.CreateTransaction(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, gin.H{
		"transaction": toTransactionResponse(txn),
		"events":      eventNames(events),
	}, "Transaction created successfully")
}

// GetTransaction godoc
// @Summary Get a transaction
// @Tags Transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /transactions/{id} [get]
func (t *TransactionController) GetTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	txn, err := t.transactionService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, toTransactionResponse(txn), "Transaction retrieved successfully")
}

// ChangeStatus godoc
// @Summary Apply a payment status change
// @Description Transition-event intake for gateway adapters and scheduled re-checks.
// @Description A status equal to the current one is acknowledged without effect.
// @Tags Transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param request body request_models.StatusChangeRequest true "Status Change Request"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /transactions/{id}/status [post]
func (t *TransactionController) ChangeStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	var request request_models.StatusChangeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	status, err := services.ParseStatus(request.Status)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	result, err := t.transactionService.ApplyStatusChange(c.Request.Context(), id, status)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	message := "Status change applied"
	if !result.Accepted {
		message = "Status unchanged"
	}
	utils.RespondSuccess(c, response_models.StatusChangeResponse{
		Accepted: result.Accepted,
		Previous: string(result.Previous),
		Current:  string(result.Current),
		Events:   eventNames(result.Events),
	}, message)
}

func eventNames(events []services.TransitionKind) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, string(e))
	}
	return names
}

func unixToRFC3339(v *int64) string {
	if v == nil {
		return ""
	}
	return utils.FormatRFC3339(utils.FromUnixSeconds(*v, time.UTC))
}

func toTransactionResponse(txn *db_models.Transaction) response_models.TransactionResponse {
	revokedAt := txn.RevokedAt
	if revokedAt == nil {
		revokedAt = txn.RefundedAt
	}
	return response_models.TransactionResponse{
		ID:          txn.ID.String(),
		BotID:       txn.BotID.String(),
		ContactID:   txn.ContactID.String(),
		PlanID:      txn.PlanID.String(),
		Amount:      txn.Amount.StringFixed(2),
		Currency:    txn.Currency,
		Status:      string(txn.Status),
		PaymentCode: txn.PaymentCode,
		PaidAt:      unixToRFC3339(txn.PaidAt),
		RevokedAt:   unixToRFC3339(revokedAt),
		CreatedAt:   unixToRFC3339(&txn.CreatedAt),
		Metadata:    txn.Metadata,
	}
}
