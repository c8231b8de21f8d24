package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
)

// @Summary      Create Coupon
// @Description  Create a coupon on the organization's catalog
// @Tags         coupons
// @Accept       json
// @Produce      json
// @Param        request body coupondomain.CreateCouponRequest true "Create Coupon Request"
// @Success      200  {object}  coupondomain.Coupon
// @Router       /coupons [post]
func (s *Server) CreateCoupon(c *gin.Context) {
	var req coupondomain.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.couponSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Coupon
// @Description  Look up a coupon by code
// @Tags         coupons
// @Produce      json
// @Param        code path      string  true  "Coupon Code"
// @Success      200  {object}  coupondomain.Coupon
// @Router       /coupons/{code} [get]
func (s *Server) GetCoupon(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}

	resp, err := s.couponSvc.GetByCode(c.Request.Context(), orgID, strings.TrimSpace(c.Param("code")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Disable Coupon
// @Description  Disable a coupon so it can no longer be redeemed
// @Tags         coupons
// @Produce      json
// @Param        id   path      string  true  "Coupon ID"
// @Success      200  {object}  coupondomain.Coupon
// @Router       /coupons/{id}/disable [post]
func (s *Server) DisableCoupon(c *gin.Context) {
	resp, err := s.couponSvc.Disable(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
