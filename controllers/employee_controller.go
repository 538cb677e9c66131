package controllers

import (
	"net/http"

	"github.com/atoz-auto/autoshop-api/authz"
	"github.com/atoz-auto/autoshop-api/middleware"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/atoz-auto/autoshop-api/utils"
	"github.com/gin-gonic/gin"
)

// UpdateRoleRequest represents the request body for changing an employee's role
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type EmployeeController struct {
	store *services.EmployeeStore
}

func NewEmployeeController(store *services.EmployeeStore) *EmployeeController {
	return &EmployeeController{store: store}
}

// UpdateRole handles PUT /api/v1/employees/:id/role (Admin only)
func (ctl *EmployeeController) UpdateRole(c *gin.Context) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := authz.Decide(p, authz.ActionManageEmployees, authz.Resource{}); err != nil {
		utils.RespondError(c, err)
		return
	}

	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}

	employee, err := ctl.store.UpdateRole(c.Request.Context(), id, req.Role)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, employee)
}
