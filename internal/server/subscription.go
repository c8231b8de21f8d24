package server

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	activitydomain "github.com/smallbiznis/deskflow/internal/activity/domain"
	subscriptiondomain "github.com/smallbiznis/deskflow/internal/subscription/domain"
	"github.com/smallbiznis/deskflow/pkg/db/pagination"
)

// @Summary      Create Subscription
// @Description  Subscribe a customer organization to a plan
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        request body subscriptiondomain.CreateSubscriptionRequest true "Create Subscription Request"
// @Success      200  {object}  subscriptiondomain.Subscription
// @Router       /subscriptions [post]
func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Subscriptions
// @Description  List the organization's subscriptions
// @Tags         subscriptions
// @Produce      json
// @Param        page       query  int  false  "Page"
// @Param        page_size  query  int  false  "Page Size"
// @Success      200  {object}  []subscriptiondomain.Subscription
// @Router       /subscriptions [get]
func (s *Server) ListSubscriptions(c *gin.Context) {
	page, pageSize := pageParams(c)
	subscriptions, total, err := s.subSvc.List(c.Request.Context(), page, pageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": subscriptions,
		"page_info": pagination.PageInfo{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

// @Summary      Get Subscription
// @Description  Get subscription by ID
// @Tags         subscriptions
// @Produce      json
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  subscriptiondomain.Subscription
// @Router       /subscriptions/{id} [get]
func (s *Server) GetSubscription(c *gin.Context) {
	orgID, id, ok := s.subscriptionTarget(c)
	if !ok {
		return
	}

	resp, err := s.subSvc.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Subscription Activity
// @Description  List lifecycle transitions recorded for a subscription
// @Tags         subscriptions
// @Produce      json
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  []activitydomain.Record
// @Router       /subscriptions/{id}/activity [get]
func (s *Server) ListSubscriptionActivity(c *gin.Context) {
	orgID, id, ok := s.subscriptionTarget(c)
	if !ok {
		return
	}

	resp, err := s.activity.ListForSubject(c.Request.Context(), orgID, activitydomain.SubjectSubscription, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Cancel Subscription
// @Description  Cancel a subscription; canceled is terminal
// @Tags         subscriptions
// @Produce      json
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  subscriptiondomain.Subscription
// @Router       /subscriptions/{id}/cancel [post]
func (s *Server) CancelSubscription(c *gin.Context) {
	s.transitionSubscription(c, s.subSvc.Cancel)
}

// @Summary      Pause Subscription
// @Description  Pause an active subscription
// @Tags         subscriptions
// @Produce      json
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  subscriptiondomain.Subscription
// @Router       /subscriptions/{id}/pause [post]
func (s *Server) PauseSubscription(c *gin.Context) {
	s.transitionSubscription(c, s.subSvc.Pause)
}

// @Summary      Resume Subscription
// @Description  Resume a paused subscription
// @Tags         subscriptions
// @Produce      json
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  subscriptiondomain.Subscription
// @Router       /subscriptions/{id}/resume [post]
func (s *Server) ResumeSubscription(c *gin.Context) {
	s.transitionSubscription(c, s.subSvc.Resume)
}

// @Summary      Roll Subscription Period
// @Description  Close the current billing period and advance one cycle
// @Tags         subscriptions
// @Produce      json
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  subscriptiondomain.RolledPeriod
// @Router       /subscriptions/{id}/roll [post]
func (s *Server) RollSubscriptionPeriod(c *gin.Context) {
	orgID, id, ok := s.subscriptionTarget(c)
	if !ok {
		return
	}

	resp, err := s.subSvc.RollPeriod(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) subscriptionTarget(c *gin.Context) (snowflake.ID, snowflake.ID, bool) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return 0, 0, false
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return 0, 0, false
	}
	return orgID, id, true
}

func (s *Server) transitionSubscription(
	c *gin.Context,
	apply func(ctx context.Context, orgID, id snowflake.ID) (*subscriptiondomain.Subscription, error),
) {
	orgID, id, ok := s.subscriptionTarget(c)
	if !ok {
		return
	}

	resp, err := apply(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
