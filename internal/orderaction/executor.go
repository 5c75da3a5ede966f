package orderaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/KretovDmitry/fraud-review-service/internal/models/casedata"
	"github.com/KretovDmitry/fraud-review-service/internal/models/order"
	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
	"github.com/KretovDmitry/fraud-review-service/pkg/metrics"
)

// Gateway is the slice of the order subsystem the executor needs.
type Gateway interface {
	GetByID(ctx context.Context, id int64) (*order.Order, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*order.Order, error)
	Save(ctx context.Context, ord *order.Order) error
	SaveInvoice(ctx context.Context, inv *order.Invoice) error
}

// InvoiceSender sends the invoice confirmation email.
type InvoiceSender interface {
	SendInvoice(ctx context.Context, ord *order.Order, inv *order.Invoice) error
}

// Executor applies a resolved action to the order aggregate. It mutates
// the order and the case in memory; persisting both records is the
// caller's unit of work. Only invoices are saved here so they join the
// same transaction.
type Executor struct {
	gateway Gateway
	sender  InvoiceSender
	metrics *metrics.Collector
	logger  logger.Logger
}

func NewExecutor(gateway Gateway, sender InvoiceSender, collector *metrics.Collector, logger logger.Logger) (*Executor, error) {
	if gateway == nil {
		return nil, errors.New("nil dependency: order gateway")
	}
	if sender == nil {
		return nil, errors.New("nil dependency: invoice sender")
	}
	if collector == nil {
		return nil, errors.New("nil dependency: metrics collector")
	}

	return &Executor{gateway: gateway, sender: sender, metrics: collector, logger: logger}, nil
}

// Execute dispatches the resolved action against the order and decides
// whether the case is settled for this cycle. Ineligible transitions are
// never escalated: they downgrade to a no-op with the reason recorded on
// the order status history.
func (e *Executor) Execute(ctx context.Context, c *casedata.Case, ord *order.Order, res Resolution) error {
	action := res.Action

	// Never attempt to mutate a terminal order.
	if ord.State.Terminal() {
		action = Nothing
	}

	e.logger.Debugf("updating order %s with action %q", ord.IncrementID, action)

	if action.mutating() {
		c.MagentoStatus = casedata.ProcessingResponse
	}

	var completeCase bool
	var err error

	switch action {
	case Hold:
		completeCase = e.hold(ord, res)
	case Unhold:
		completeCase = e.unhold(ord, res)
	case Cancel:
		completeCase = e.cancel(ord, res)
	case Capture:
		completeCase, err = e.capture(ctx, ord)
	case Wait:
		// Signifyd is still processing, the case stays open until the
		// next verdict.
	case Nothing:
		completeCase = true
	case None:
		// No action resolved for this disposition, leave everything as is.
	}
	if err != nil {
		return err
	}

	if completeCase {
		c.Complete()
	}

	e.metrics.RecordAction(action.String(), completeCase)

	return nil
}

func (e *Executor) hold(ord *order.Order, res Resolution) bool {
	if err := ord.Hold(); err != nil {
		reason := transitionReason(err)
		e.logger.Debugf("order %s can not be held because %s", ord.IncrementID, reason)
		ord.AddStatusHistoryComment(fmt.Sprintf("Signifyd: order cannot be updated to on hold, %s", reason))

		// Asked to hold an order that is on hold already: satisfied.
		return reason == order.ReasonAlreadyHolded
	}

	ord.AddStatusHistoryComment("Signifyd: " + res.Reason)

	return true
}

func (e *Executor) unhold(ord *order.Order, res Resolution) bool {
	if err := ord.Unhold(); err != nil {
		reason := transitionReason(err)
		e.logger.Debugf("order %s (%s > %s) can not be removed from hold because %s",
			ord.IncrementID, ord.State, ord.Status, reason)
		ord.AddStatusHistoryComment(fmt.Sprintf("Signifyd: order status cannot be updated, %s", reason))

		// Not on hold in the first place: satisfied.
		return reason == order.ReasonNotHolded
	}

	ord.AddStatusHistoryComment(fmt.Sprintf("Signifyd: order status updated, %s", res.Reason))

	return true
}

func (e *Executor) cancel(ord *order.Order, res Resolution) bool {
	if ok, _ := ord.CanUnhold(); ok {
		_ = ord.Unhold()
	}

	if err := ord.Cancel(); err != nil {
		reason := transitionReason(err)
		e.logger.Debugf("order %s cannot be canceled because %s", ord.IncrementID, reason)
		ord.AddStatusHistoryComment(fmt.Sprintf("Signifyd: order cannot be canceled, %s", reason))

		// Best effort restore of the hold we may have just released.
		if ok, _ := ord.CanHold(); ok {
			_ = ord.Hold()
		}

		// Everything shipped and invoiced, nothing left to protect.
		return reason == order.ReasonFullyInvoiced
	}

	ord.AddStatusHistoryComment(fmt.Sprintf("Signifyd: order canceled, %s", res.Reason))

	return true
}

func (e *Executor) capture(ctx context.Context, ord *order.Order) (bool, error) {
	if ok, _ := ord.CanUnhold(); ok {
		_ = ord.Unhold()
	}

	inv, err := ord.PrepareInvoice()
	if err != nil {
		reason := transitionReason(err)
		e.logger.Debugf("order %s can not be invoiced because %s", ord.IncrementID, reason)
		ord.AddStatusHistoryComment(fmt.Sprintf("Signifyd: unable to create invoice: %s", reason))

		if ok, _ := ord.CanHold(); ok {
			_ = ord.Hold()
		}

		return reason == order.ReasonNothingToInvoice, nil
	}

	inv.AddComment("Signifyd: Automatic invoice")

	// A failed insert poisons the surrounding transaction, so there is
	// no point recording a comment that would roll back with it. The
	// error fails the whole unit of work and the resync retries.
	if err := e.gateway.SaveInvoice(ctx, inv); err != nil {
		e.logger.Errorf("exception creating invoice for order %s: %s", ord.IncrementID, err)
		return false, fmt.Errorf("save invoice: %w", err)
	}

	inv.Register(ord)
	ord.AddStatusHistoryComment("Signifyd: create order invoice: " + inv.IncrementID)
	e.logger.Debugf("invoice was created for order %s", ord.IncrementID)

	// The confirmation email is best effort.
	if err := e.sender.SendInvoice(ctx, ord, inv); err != nil {
		e.logger.Debugf("failed to send the invoice email: %s", err)
	}

	return true, nil
}

func transitionReason(err error) order.Reason {
	var te *order.TransitionError
	if errors.As(err, &te) {
		return te.Reason
	}
	return order.ReasonNone
}
