package controllers

import (
	"net/http"
	"strings"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/authz"
	"github.com/atoz-auto/autoshop-api/middleware"
	"github.com/atoz-auto/autoshop-api/models"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/atoz-auto/autoshop-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	CustomerID  uint             `json:"customer_id"`
	VehicleID   *uint            `json:"vehicle_id"`
	Description *string          `json:"description"`
	ServiceIDs  []uint           `json:"service_ids"`
	ReceivedBy  *string          `json:"received_by"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
}

// AddServiceRequest represents the request body for attaching a service
type AddServiceRequest struct {
	ServiceID uint `json:"service_id" binding:"required,gt=0"`
}

// OrderController serves the order routes.
type OrderController struct {
	store *services.OrderStore
}

func NewOrderController(store *services.OrderStore) *OrderController {
	return &OrderController{store: store}
}

// CreateOrder handles POST /api/v1/orders
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}

	// Customers may omit their own id.
	if req.CustomerID == 0 && p.IsCustomer() {
		req.CustomerID = p.ID
	}
	if req.CustomerID == 0 {
		utils.RespondError(c, apperrors.Validation("customer_id is required"))
		return
	}

	res := authz.Resource{OwnerID: req.CustomerID}
	if req.TotalAmount != nil {
		res.Fields = append(res.Fields, authz.FieldTotalAmount)
	}
	if err := authz.Decide(p, authz.ActionCreateOrder, res); err != nil {
		utils.RespondError(c, err)
		return
	}

	if req.ReceivedBy == nil || strings.TrimSpace(*req.ReceivedBy) == "" {
		receivedBy := p.Role.String()
		req.ReceivedBy = &receivedBy
	}

	order, err := ctl.store.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		CustomerID:  req.CustomerID,
		VehicleID:   req.VehicleID,
		Description: req.Description,
		ServiceIDs:  req.ServiceIDs,
		ReceivedBy:  req.ReceivedBy,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondData(c, http.StatusCreated, order)
}

// GetOrder handles GET /api/v1/orders/:id
func (ctl *OrderController) GetOrder(c *gin.Context) {
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

	ctx := c.Request.Context()
	owner, err := ctl.store.OrderOwner(ctx, id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := authz.Decide(p, authz.ActionReadOrder, authz.Resource{OwnerID: owner}); err != nil {
		utils.RespondError(c, err)
		return
	}

	order, err := ctl.store.GetOrder(ctx, id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, order)
}

// ListOrders handles GET /api/v1/orders. Customers only ever see their own
// orders; staff may filter by customer, employee and both status axes.
func (ctl *OrderController) ListOrders(c *gin.Context) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	filter, err := parseOrderFilter(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if p.IsCustomer() && filter.CustomerID == nil {
		filter.CustomerID = &p.ID
	}

	var owner uint
	if filter.CustomerID != nil {
		owner = *filter.CustomerID
	}
	if err := authz.Decide(p, authz.ActionListOrders, authz.Resource{OwnerID: owner}); err != nil {
		utils.RespondError(c, err)
		return
	}

	filter = filter.Normalized()
	orders, total, err := ctl.store.ListOrders(c.Request.Context(), filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"pagination": gin.H{
			"limit":  filter.Limit,
			"offset": filter.Offset,
			"total":  total,
		},
	})
}

// UpdateOrder handles PUT /api/v1/orders/:id
func (ctl *OrderController) UpdateOrder(c *gin.Context) {
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

	body, err := c.GetRawData()
	if err != nil {
		utils.RespondError(c, apperrors.Validation("Invalid request data"))
		return
	}
	patch, err := parseOrderPatch(body)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	if err := authz.Decide(p, authz.ActionUpdateOrder, authz.Resource{Fields: patch.Fields()}); err != nil {
		utils.RespondError(c, err)
		return
	}

	order, err := ctl.store.UpdateOrder(c.Request.Context(), id, patch)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, order)
}

// AddService handles POST /api/v1/orders/:id/services
func (ctl *OrderController) AddService(c *gin.Context) {
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

	var req AddServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	owner, err := ctl.store.OrderOwner(ctx, id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := authz.Decide(p, authz.ActionAttachService, authz.Resource{OwnerID: owner}); err != nil {
		utils.RespondError(c, err)
		return
	}

	order, err := ctl.store.AddService(ctx, id, req.ServiceID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, order)
}

// GetVehicle handles GET /api/v1/vehicles/:id
func (ctl *OrderController) GetVehicle(c *gin.Context) {
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

	vehicle, err := ctl.store.GetVehicle(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := authz.Decide(p, authz.ActionReadVehicle, authz.Resource{OwnerID: vehicle.CustomerID}); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, vehicle)
}

func parseOrderFilter(c *gin.Context) (services.OrderFilter, error) {
	var (
		f   services.OrderFilter
		err error
	)

	if raw := c.Query("status"); raw != "" {
		status, perr := models.ParseOrderStatus(raw)
		if perr != nil {
			return f, apperrors.Validation("Invalid status query parameter").WithDetails(map[string]any{"status": raw})
		}
		f.Status = &status
	}
	if raw := c.Query("payment_status"); raw != "" {
		ps := models.OrderPaymentStatus(raw)
		if ps != models.OrderPaymentPending && ps != models.OrderPaymentPaid {
			return f, apperrors.Validation("Invalid payment_status query parameter").WithDetails(map[string]any{"payment_status": raw})
		}
		f.PaymentStatus = &ps
	}
	if f.CustomerID, err = utils.ParseUintQuery(c, "customer_id"); err != nil {
		return f, err
	}
	if f.AssignedEmployeeID, err = utils.ParseUintQuery(c, "assigned_employee_id"); err != nil {
		return f, err
	}
	if f.Limit, err = utils.ParseIntQuery(c, "limit", services.DefaultListLimit); err != nil {
		return f, err
	}
	if f.Offset, err = utils.ParseIntQuery(c, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}
