package handlers

import (
	"net/http"

	"vendra/middleware"
	"vendra/models"
	"vendra/services/escrow"
	"vendra/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OrderHandler exposes the escrow engine over HTTP.
type OrderHandler struct {
	engine escrow.SettlementEngine
	logger *zap.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(engine escrow.SettlementEngine, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{engine: engine, logger: logger}
}

// QuoteHandler returns the fee breakdown a checkout would pay.
func (h *OrderHandler) QuoteHandler(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid quote request", err.Error())
		return
	}

	quote, err := h.engine.Quote(req)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// CreateOrderHandler runs checkout: authorize payment, persist the order.
func (h *OrderHandler) CreateOrderHandler(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid order request", err.Error())
		return
	}

	buyerID := middleware.ActorID(c)
	order, err := h.engine.CreateOrder(c.Request.Context(), buyerID, req)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"order_id": order.OrderNumber,
		"status":   order.Status,
	})
}

// GetOrderHandler returns the full order aggregate.
func (h *OrderHandler) GetOrderHandler(c *gin.Context) {
	detail, err := h.engine.GetOrder(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	// Order detail is visible to its parties and admins only.
	actor := middleware.ActorID(c)
	if actor != detail.Order.BuyerID && actor != detail.Order.SellerID && c.GetString("actorRole") != "admin" {
		utils.JSONError(c, http.StatusForbidden, "not a party to this order", "")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// SubmitProofHandler records shipment or delivery evidence and advances
// the order.
func (h *OrderHandler) SubmitProofHandler(c *gin.Context) {
	var req models.SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid proof request", err.Error())
		return
	}

	actor := middleware.ActorID(c)
	order, err := h.engine.SubmitProof(c.Request.Context(), actor, c.Param("orderNumber"), req)
	if err != nil {
		// A duplicate is recorded for audit but changes nothing.
		if escrow.IsCode(err, escrow.CodeDuplicateSubmission) {
			c.JSON(http.StatusOK, gin.H{"accepted": false, "error": err.Error()})
			return
		}
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted":     true,
		"order_status": order.Status,
	})
}

// OpenDisputeHandler opens arbitration on an order.
func (h *OrderHandler) OpenDisputeHandler(c *gin.Context) {
	var req models.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid dispute request", err.Error())
		return
	}

	actor := middleware.ActorID(c)
	order, err := h.engine.OpenDispute(c.Request.Context(), actor, c.Param("orderNumber"), req.Reason)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_status": order.Status})
}

// ResolveDisputeHandler applies the arbitration outcome. Admin only.
func (h *OrderHandler) ResolveDisputeHandler(c *gin.Context) {
	var req models.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid resolution request", err.Error())
		return
	}

	order, err := h.engine.ResolveDispute(c.Request.Context(), c.Param("orderNumber"), req.Outcome)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_status": order.Status})
}

// CancelOrderHandler aborts a pending order and refunds the buyer.
func (h *OrderHandler) CancelOrderHandler(c *gin.Context) {
	actor := middleware.ActorID(c)
	order, err := h.engine.Cancel(c.Request.Context(), actor, c.Param("orderNumber"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_status": order.Status})
}

// respondEngineError maps the engine's failure taxonomy onto HTTP.
func respondEngineError(c *gin.Context, err error) {
	switch escrow.CodeOf(err) {
	case escrow.CodeValidation:
		utils.JSONError(c, http.StatusBadRequest, "validation failed", err.Error())
	case escrow.CodePriceMismatch:
		utils.JSONError(c, http.StatusUnprocessableEntity, "price mismatch", err.Error())
	case escrow.CodePaymentDeclined:
		utils.JSONError(c, http.StatusPaymentRequired, "payment declined", err.Error())
	case escrow.CodeProviderTimeout:
		utils.JSONError(c, http.StatusGatewayTimeout, "payment confirmation timed out", err.Error())
	case escrow.CodeInvalidTransition:
		utils.JSONError(c, http.StatusConflict, "invalid state transition", err.Error())
	case escrow.CodeNotFound:
		utils.JSONError(c, http.StatusNotFound, "order not found", err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
	}
}
