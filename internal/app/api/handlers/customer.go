package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/fatflowers/craftbill/internal/app/api/middleware"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/pkg/response"
)

// @Summary      Get Entitlement
// @Description  Returns the entitlement decision for the authenticated account.
// @Tags         Customer
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespEntitlement
// @Failure      401  {object}  handlers.RespOK
// @Failure      403  {object}  handlers.RespOK
// @Router       /api/v1/entitlement [get]
func ApiGetEntitlement(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(mw.Decision(c)))
}

type UpdateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone"`
}

// @Summary      Update Customer Profile
// @Description  Updates contact fields of the authenticated customer. Empty fields are left unchanged. Requires an unrestricted subscription.
// @Tags         Customer
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateProfileRequest true "Contact fields"
// @Success      200  {object}  handlers.RespCustomer
// @Failure      403  {object}  handlers.RespOK
// @Router       /api/v1/customer/profile [put]
func ApiUpdateProfile(svc *customer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		contact := models.ContactFields{Name: req.Name, Email: req.Email, Phone: req.Phone}
		if contact.IsZero() {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "nothing to update"))
			return
		}
		row, err := svc.UpdateProfile(c.Request.Context(), mw.AccountID(c), contact)
		if errors.Is(err, customer.ErrNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(row))
	}
}

type CheckOrderResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// @Summary      Check Order Creation
// @Description  Reports whether the authenticated account may create orders right now.
// @Tags         Customer
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespCheckOrder
// @Router       /api/v1/orders/check [post]
func ApiCheckOrder(c *gin.Context) {
	d := mw.Decision(c)
	if d == nil || d.Restricted {
		c.JSON(http.StatusOK, response.OKT(&CheckOrderResponse{Allowed: false, Reason: mw.MsgSubscriptionRequired}))
		return
	}
	c.JSON(http.StatusOK, response.OKT(&CheckOrderResponse{Allowed: true}))
}

// RegisterCustomerRoutes mounts the gated application routes. r must already
// run AuthMiddleware and EntitlementGate.
func RegisterCustomerRoutes(r gin.IRouter, svc *customer.Service) {
	r.GET("/entitlement", ApiGetEntitlement)
	r.PUT("/customer/profile", mw.RequireUnrestricted(), ApiUpdateProfile(svc))
	r.POST("/orders/check", ApiCheckOrder)
}
