package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/rondpoint/internal/middleware"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/payments"
	"github.com/joshua-takyi/rondpoint/internal/services"
)

const maxWebhookBody = 64 << 10

func PaymentMethods(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"methods": ps.Methods()}, ""))
	}
}

func InitiatePayment(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.PaymentInput
		if !bindJSON(c, &in) {
			return
		}
		res, err := ps.Initiate(c.Request.Context(), middleware.Actor(c), &in)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusOK
		if res.Payment.Status == models.PaymentPending {
			status = http.StatusAccepted
		}
		c.JSON(status, models.SuccessResponse(res.Payment, res.Message))
	}
}

func VerifyPayment(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			TransactionRef string `json:"transaction_ref"`
		}
		if !bindJSON(c, &body) {
			return
		}
		if body.TransactionRef == "" {
			respondError(c, models.NewFieldError("transaction_ref", "is required"))
			return
		}
		p, err := ps.Verify(c.Request.Context(), middleware.Actor(c), body.TransactionRef)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(p, ""))
	}
}

func PaymentHistory(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageFromQuery(c)
		if !ok {
			return
		}
		list, info, err := ps.History(c.Request.Context(), middleware.Actor(c), page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(list, info))
	}
}

// PaymentWebhook needs the raw body to check the signature.
func PaymentWebhook(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			respondError(c, models.NewFieldError("body", "unreadable"))
			return
		}
		p, err := ps.Webhook(c.Request.Context(), body, c.GetHeader(payments.SignatureHeader))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"transaction_ref": p.Reference, "status": p.Status}, "Webhook processed"))
	}
}
