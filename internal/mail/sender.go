package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/KretovDmitry/fraud-review-service/internal/config"
	"github.com/KretovDmitry/fraud-review-service/internal/models/order"
	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
)

// Sender delivers invoice confirmation emails. Callers treat failures
// as non-fatal.
type Sender interface {
	SendInvoice(ctx context.Context, ord *order.Order, inv *order.Invoice) error
}

// SMTPSender sends plain text confirmations over SMTP.
type SMTPSender struct {
	addr   string
	from   string
	logger logger.Logger
}

// NopSender silently drops every email. Used when SMTP is disabled.
type NopSender struct{}

func (NopSender) SendInvoice(context.Context, *order.Order, *order.Invoice) error { return nil }

// New builds a sender from the configuration. With SMTP disabled the
// returned sender is a no-op.
func New(cfg *config.Config, logger logger.Logger) Sender {
	if !cfg.SMTP.Enabled {
		return NopSender{}
	}

	return &SMTPSender{
		addr:   fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port),
		from:   cfg.SMTP.From,
		logger: logger,
	}
}

func (s *SMTPSender) SendInvoice(_ context.Context, ord *order.Order, inv *order.Invoice) error {
	if ord.CustomerEmail == "" {
		return fmt.Errorf("order %s has no customer email", ord.IncrementID)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", ord.CustomerEmail)
	fmt.Fprintf(&msg, "Subject: Invoice %s for order %s\r\n\r\n", inv.IncrementID, ord.IncrementID)
	fmt.Fprintf(&msg, "Your order %s has been invoiced for %s.\r\n", ord.IncrementID, inv.GrandTotal)

	err := smtp.SendMail(s.addr, nil, s.from, []string{ord.CustomerEmail}, []byte(msg.String()))
	if err != nil {
		return fmt.Errorf("send invoice email: %w", err)
	}

	s.logger.Debugf("invoice email for order %s sent to %s", ord.IncrementID, ord.CustomerEmail)

	return nil
}
