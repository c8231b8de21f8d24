package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	pricingdomain "github.com/smallbiznis/deskflow/internal/pricing/domain"
)

// @Summary      Resolve Price
// @Description  Resolve the recurring charge and MRR for a plan instance
// @Tags         pricing
// @Accept       json
// @Produce      json
// @Param        request body pricingdomain.ResolveRequest true "Resolve Request"
// @Success      200  {object}  pricingdomain.ResolveResult
// @Router       /pricing/resolve [post]
func (s *Server) ResolvePrice(c *gin.Context) {
	var req pricingdomain.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricingSvc.Resolve(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
