package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups the HTTP handlers wired in main and consumed by
// the routes package.
type HandlerBundle struct {
	// Order escrow endpoints.
	QuoteHandler          gin.HandlerFunc
	CreateOrderHandler    gin.HandlerFunc
	GetOrderHandler       gin.HandlerFunc
	SubmitProofHandler    gin.HandlerFunc
	OpenDisputeHandler    gin.HandlerFunc
	ResolveDisputeHandler gin.HandlerFunc
	CancelOrderHandler    gin.HandlerFunc
}
