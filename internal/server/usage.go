package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/smallbiznis/deskflow/internal/usage/domain"
)

// @Summary      Record Usage
// @Description  Record a usage quantity against a subscription meter
// @Tags         usage
// @Accept       json
// @Produce      json
// @Param        request body usagedomain.RecordUsageRequest true "Record Usage Request"
// @Success      200  {object}  usagedomain.UsageRecord
// @Router       /usage [post]
func (s *Server) RecordUsage(c *gin.Context) {
	var req usagedomain.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.usageSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
