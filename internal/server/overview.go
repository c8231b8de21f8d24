package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Billing Overview
// @Description  Summarize MRR, subscription and invoice counts, and recent activity
// @Tags         overview
// @Produce      json
// @Param        limit  query  int  false  "Recent activity limit"
// @Success      200  {object}  dashboarddomain.OverviewResponse
// @Router       /overview [get]
func (s *Server) GetOverview(c *gin.Context) {
	limit := intQuery(c, "limit", 10)
	resp, err := s.dashboardSvc.Overview(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
