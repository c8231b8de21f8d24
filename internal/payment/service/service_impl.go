package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/deskflow/internal/clock"
	invoicedomain "github.com/smallbiznis/deskflow/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/deskflow/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	InvoiceSvc invoicedomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	invoiceSvc invoicedomain.Service
}

func NewService(p ServiceParam) paymentdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payment.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		invoiceSvc: p.InvoiceSvc,
	}
}

func (s *Service) Record(ctx context.Context, orgID snowflake.ID, req paymentdomain.RecordPaymentRequest) (*paymentdomain.Payment, error) {
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, paymentdomain.ErrInvalidReference
	}
	if req.AmountCents <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	switch req.Method {
	case paymentdomain.MethodManual, paymentdomain.MethodBankTransfer, paymentdomain.MethodCard:
	default:
		return nil, paymentdomain.ErrInvalidMethod
	}

	// Retried submissions with a known reference return the original record
	// without touching the invoice again.
	var existing paymentdomain.Payment
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND reference = ?", orgID, reference).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	inv, err := s.invoiceSvc.GetByID(ctx, orgID, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if req.AmountCents != inv.TotalCents {
		return nil, paymentdomain.ErrAmountMismatch
	}

	now := s.clock.Now()
	payment := &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		InvoiceID:   inv.ID,
		AmountCents: req.AmountCents,
		Currency:    inv.Currency,
		Method:      req.Method,
		Reference:   reference,
		ReceivedAt:  now,
		CreatedAt:   now,
	}

	result := s.db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, org_id, invoice_id, amount_cents, currency, method, reference, received_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id, reference) DO NOTHING`,
		payment.ID,
		payment.OrgID,
		payment.InvoiceID,
		payment.AmountCents,
		payment.Currency,
		payment.Method,
		payment.Reference,
		payment.ReceivedAt,
		payment.CreatedAt,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to a concurrent retry.
		err := s.db.WithContext(ctx).
			Where("org_id = ? AND reference = ?", orgID, reference).
			First(&existing).Error
		if err != nil {
			return nil, err
		}
		return &existing, nil
	}

	if _, err := s.invoiceSvc.MarkPaid(ctx, orgID, inv.ID); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) ListForInvoice(ctx context.Context, orgID, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	var payments []paymentdomain.Payment
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND invoice_id = ?", orgID, invoiceID).
		Order("received_at ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
