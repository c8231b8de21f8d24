package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/deskflow/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/deskflow/internal/payment/domain"
	"github.com/smallbiznis/deskflow/pkg/db/pagination"
)

type generateInvoiceRequest struct {
	SubscriptionID string    `json:"subscription_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	FreeCycle      bool      `json:"free_cycle"`
}

type voidInvoiceRequest struct {
	Reason string `json:"reason"`
}

type recordPaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
}

// @Summary      Generate Invoice
// @Description  Build a draft invoice for one subscription period
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body generateInvoiceRequest true "Generate Invoice Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/generate [post]
func (s *Server) GenerateInvoice(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}

	var req generateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	subscriptionID, ok := parseIDString(c, "subscription_id", req.SubscriptionID)
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.Generate(c.Request.Context(), orgID, invoicedomain.GenerateRequest{
		SubscriptionID: subscriptionID,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		FreeCycle:      req.FreeCycle,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Invoices
// @Description  List the organization's invoices
// @Tags         invoices
// @Produce      json
// @Param        page       query  int  false  "Page"
// @Param        page_size  query  int  false  "Page Size"
// @Success      200  {object}  []invoicedomain.Invoice
// @Router       /invoices [get]
func (s *Server) ListInvoices(c *gin.Context) {
	page, pageSize := pageParams(c)
	invoices, total, err := s.invoiceSvc.List(c.Request.Context(), page, pageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": invoices,
		"page_info": pagination.PageInfo{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

// @Summary      Get Invoice
// @Description  Get invoice by ID
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id} [get]
func (s *Server) GetInvoice(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Finalize Invoice
// @Description  Transition a draft invoice to final
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id}/finalize [post]
func (s *Server) FinalizeInvoice(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.Finalize(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Pay Invoice
// @Description  Record a payment and settle the invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Invoice ID"
// @Param        request  body      recordPaymentRequest  true  "Record Payment Request"
// @Success      200  {object}  paymentdomain.Payment
// @Router       /invoices/{id}/pay [post]
func (s *Server) PayInvoice(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.Record(c.Request.Context(), orgID, paymentdomain.RecordPaymentRequest{
		InvoiceID:   id,
		AmountCents: req.AmountCents,
		Method:      paymentdomain.PaymentMethod(strings.TrimSpace(req.Method)),
		Reference:   req.Reference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Void Invoice
// @Description  Void an invoice with a reason
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Invoice ID"
// @Param        request  body      voidInvoiceRequest  true  "Void Invoice Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id}/void [post]
func (s *Server) VoidInvoice(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req voidInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Void(c.Request.Context(), orgID, id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Invoice Payments
// @Description  List payments recorded against an invoice
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  []paymentdomain.Payment
// @Router       /invoices/{id}/payments [get]
func (s *Server) ListInvoicePayments(c *gin.Context) {
	orgID, ok := orgFromRequest(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := s.paymentSvc.ListForInvoice(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
