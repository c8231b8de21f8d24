package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
)

type createAddOnRequest struct {
	Name          string  `json:"name"`
	AmountCents   int64   `json:"amount_cents"`
	PerSeatAmount *int64  `json:"per_seat_amount_cents,omitempty"`
	UsageMeterID  *string `json:"usage_meter_id,omitempty"`
}

// @Summary      Create Plan
// @Description  Create a new plan in draft status
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        request body catalogdomain.CreatePlanRequest true "Create Plan Request"
// @Success      200  {object}  catalogdomain.ProductPlan
// @Router       /plans [post]
func (s *Server) CreatePlan(c *gin.Context) {
	var req catalogdomain.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreatePlan(c.Request.Context(), catalogdomain.CreatePlanRequest{
		Name:         strings.TrimSpace(req.Name),
		PricingModel: req.PricingModel,
		TrialDays:    req.TrialDays,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Plans
// @Description  List the organization's plans
// @Tags         plans
// @Produce      json
// @Success      200  {object}  []catalogdomain.ProductPlan
// @Router       /plans [get]
func (s *Server) ListPlans(c *gin.Context) {
	resp, err := s.catalogSvc.ListPlans(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Plan
// @Description  Get plan by ID
// @Tags         plans
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  catalogdomain.ProductPlan
// @Router       /plans/{id} [get]
func (s *Server) GetPlan(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}
	planID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := s.catalogSvc.GetPlan(c.Request.Context(), orgID, planID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Activate Plan
// @Description  Transition a draft plan to active
// @Tags         plans
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  catalogdomain.ProductPlan
// @Router       /plans/{id}/activate [post]
func (s *Server) ActivatePlan(c *gin.Context) {
	resp, err := s.catalogSvc.ActivatePlan(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Archive Plan
// @Description  Archive a plan; existing subscriptions keep billing
// @Tags         plans
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  catalogdomain.ProductPlan
// @Router       /plans/{id}/archive [post]
func (s *Server) ArchivePlan(c *gin.Context) {
	resp, err := s.catalogSvc.ArchivePlan(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Create Pricing
// @Description  Attach a pricing row to a plan
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        id       path      string                             true  "Plan ID"
// @Param        request  body      catalogdomain.CreatePricingRequest true  "Create Pricing Request"
// @Success      200  {object}  catalogdomain.ProductPricing
// @Router       /plans/{id}/pricings [post]
func (s *Server) CreatePricing(c *gin.Context) {
	var req catalogdomain.CreatePricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PlanID = strings.TrimSpace(c.Param("id"))

	resp, err := s.catalogSvc.CreatePricing(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Pricings
// @Description  List pricing rows for a plan
// @Tags         plans
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  []catalogdomain.ProductPricing
// @Router       /plans/{id}/pricings [get]
func (s *Server) ListPricings(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}
	planID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := s.catalogSvc.ListPricings(c.Request.Context(), orgID, planID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Create Add-On
// @Description  Create a catalog add-on
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        request body createAddOnRequest true "Create Add-On Request"
// @Success      200  {object}  catalogdomain.ProductAddOn
// @Router       /addons [post]
func (s *Server) CreateAddOn(c *gin.Context) {
	var req createAddOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreateAddOn(c.Request.Context(), strings.TrimSpace(req.Name), req.AmountCents, req.PerSeatAmount, req.UsageMeterID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Attach Add-On
// @Description  Attach an add-on to a plan
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        id       path      string                             true  "Plan ID"
// @Param        request  body      catalogdomain.AttachAddOnRequest   true  "Attach Add-On Request"
// @Success      200  {object}  catalogdomain.ProductPlanAddOn
// @Router       /plans/{id}/addons [post]
func (s *Server) AttachAddOn(c *gin.Context) {
	var req catalogdomain.AttachAddOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PlanID = strings.TrimSpace(c.Param("id"))

	resp, err := s.catalogSvc.AttachAddOn(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Plan Add-Ons
// @Description  List add-ons attached to a plan
// @Tags         plans
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  []catalogdomain.PlanAddOnView
// @Router       /plans/{id}/addons [get]
func (s *Server) ListPlanAddOns(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}
	planID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := s.catalogSvc.ListPlanAddOns(c.Request.Context(), orgID, planID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
