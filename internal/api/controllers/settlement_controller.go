package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"allpartyrental/internal/models/request_models"
	"allpartyrental/internal/models/response_models"
	"allpartyrental/internal/services"
	"allpartyrental/pkg/utils"
)

type SettlementController struct {
	settlementService services.SettlementService
}

func NewSettlementController(settlementService services.SettlementService) *SettlementController {
	return &SettlementController{
		settlementService: settlementService,
	}
}

// InitiateCheckout godoc
// @Summary Start checkout for an approved offer
// @Tags Settlements
// @Accept json
// @Produce json
// @Param request body request_models.InitiateCheckoutRequest true "Checkout Request"
// @Success 200 {object} utils.APIResponse
// @Router /settlements/checkout [post]
func (s *SettlementController) InitiateCheckout(c *gin.Context) {
	var request request_models.InitiateCheckoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	txn, err := s.settlementService.InitiateCheckout(c.Request.Context(), request.OfferID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.FromTransaction(txn), "Checkout initiated")
}

func (s *SettlementController) ConfirmPayment(c *gin.Context) {
	txID, ok := transactionID(c)
	if !ok {
		return
	}

	txn, err := s.settlementService.ConfirmPayment(c.Request.Context(), txID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.FromTransaction(txn), "Payment captured into escrow")
}

func (s *SettlementController) BeginProviderReview(c *gin.Context) {
	txID, ok := transactionID(c)
	if !ok {
		return
	}

	txn, err := s.settlementService.BeginProviderReview(c.Request.Context(), txID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.FromTransaction(txn), "Provider review started")
}

// ApproveByProvider releases escrowed funds. The provider id comes from the
// authenticated token, not the request body.
func (s *SettlementController) ApproveByProvider(c *gin.Context) {
	txID, ok := transactionID(c)
	if !ok {
		return
	}

	providerID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid provider identity")
		return
	}

	txn, err := s.settlementService.ApproveByProvider(c.Request.Context(), txID, providerID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.FromTransaction(txn), "Settlement completed")
}

func (s *SettlementController) Refund(c *gin.Context) {
	txID, ok := transactionID(c)
	if !ok {
		return
	}

	var request request_models.RefundRequest
	if err := c.ShouldBindJSON(&request); err != nil && err.Error() != "EOF" {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	txn, err := s.settlementService.Refund(c.Request.Context(), txID, request.Amount)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.FromTransaction(txn), "Settlement refunded")
}

func (s *SettlementController) RaiseDispute(c *gin.Context) {
	txID, ok := transactionID(c)
	if !ok {
		return
	}

	txn, err := s.settlementService.RaiseDispute(c.Request.Context(), txID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.FromTransaction(txn), "Dispute raised")
}

func (s *SettlementController) ResolveDispute(c *gin.Context) {
	txID, ok := transactionID(c)
	if !ok {
		return
	}

	var request request_models.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	txn, err := s.settlementService.ResolveDispute(c.Request.Context(), txID, services.DisputeOutcome(request.Outcome))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.FromTransaction(txn), "Dispute resolved")
}

func (s *SettlementController) GetTransaction(c *gin.Context) {
	txID, ok := transactionID(c)
	if !ok {
		return
	}

	txn, err := s.settlementService.GetTransaction(c.Request.Context(), txID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.FromTransaction(txn), "")
}

func transactionID(c *gin.Context) (uuid.UUID, bool) {
	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid transaction id")
		return uuid.Nil, false
	}
	return txID, true
}
