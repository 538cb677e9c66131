package controllers

import (
	"net/http"

	"github.com/atoz-auto/autoshop-api/authz"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/middleware"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/atoz-auto/autoshop-api/utils"
	"github.com/gin-gonic/gin"
)

// ConfirmPaymentRequest represents the request body for confirming a payment
type ConfirmPaymentRequest struct {
	OrderID         uint   `json:"orderId" binding:"required,gt=0"`
	PaymentIntentID string `json:"paymentIntentId" binding:"required"`
}

// PaymentController serves the customer payment routes.
type PaymentController struct {
	reconciler *services.PaymentReconciler
	orders     *services.OrderStore
}

func NewPaymentController(reconciler *services.PaymentReconciler, orders *services.OrderStore) *PaymentController {
	return &PaymentController{reconciler: reconciler, orders: orders}
}

// CreateIntent handles POST /api/v1/payments/orders/:id/intent
func (ctl *PaymentController) CreateIntent(c *gin.Context) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := ctl.authorize(c, p, id, authz.ActionPayOrder); err != nil {
		utils.RespondError(c, err)
		return
	}

	result, err := ctl.reconciler.CreateIntent(c.Request.Context(), id, p.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, result)
}

// ConfirmPayment handles POST /api/v1/payments/confirm
func (ctl *PaymentController) ConfirmPayment(c *gin.Context) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}
	if err := ctl.authorize(c, p, req.OrderID, authz.ActionPayOrder); err != nil {
		utils.RespondError(c, err)
		return
	}

	order, err := ctl.reconciler.ConfirmPayment(c.Request.Context(), req.OrderID, req.PaymentIntentID, p.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, order)
}

// History handles GET /api/v1/payments/orders/:id/history
func (ctl *PaymentController) History(c *gin.Context) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := ctl.authorize(c, p, id, authz.ActionReadPayments); err != nil {
		utils.RespondError(c, err)
		return
	}

	payments, err := ctl.reconciler.PaymentHistory(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, payments)
}

func (ctl *PaymentController) authorize(c *gin.Context, p identity.Principal, orderID uint, action authz.Action) error {
	owner, err := ctl.orders.OrderOwner(c.Request.Context(), orderID)
	if err != nil {
		return err
	}
	return authz.Decide(p, action, authz.Resource{OwnerID: owner})
}
