package placement

import (
	"context"
	"errors"
	"fmt"

	"github.com/KretovDmitry/fraud-review-service/internal/config"
	"github.com/KretovDmitry/fraud-review-service/internal/models/casedata"
	"github.com/KretovDmitry/fraud-review-service/internal/models/errs"
	"github.com/KretovDmitry/fraud-review-service/internal/models/order"
	"github.com/KretovDmitry/fraud-review-service/internal/orderaction"
	"github.com/KretovDmitry/fraud-review-service/internal/webhook"
	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
	"github.com/KretovDmitry/fraud-review-service/pkg/metrics"
)

// Payment methods whose case creation is driven by their own follow-up
// events rather than the placement path.
var ownEventsMethods = []string{"authorizenet_directpost"}

// Payment methods that confirm asynchronously. Holding such an order is
// meaningful only after its confirmation signal arrives.
var confirmationGatedMethods = []string{"payflow_express"}

// CaseSubmitter posts a new case to the risk service and returns the
// issued investigation code. An empty code with no error means the
// submission was not acknowledged yet: the case stays waiting_submission
// for the resync to pick up.
type CaseSubmitter interface {
	Submit(ctx context.Context, ord *order.Order) (string, error)
}

// NopSubmitter never submits. Deployments that drive case submission
// from a separate pipeline wire this one.
type NopSubmitter struct{}

func (NopSubmitter) Submit(context.Context, *order.Order) (string, error) { return "", nil }

// Service applies the order placement hold policy: create the case
// record and decide whether to place an initial hold pending review.
type Service struct {
	repo      Repository
	orders    orderaction.Gateway
	submitter CaseSubmitter
	trm       webhook.TrManager
	metrics   *metrics.Collector
	logger    logger.Logger
	config    *config.Config
}

func NewService(
	repo Repository,
	orders orderaction.Gateway,
	submitter CaseSubmitter,
	trm webhook.TrManager,
	collector *metrics.Collector,
	logger logger.Logger,
	config *config.Config,
) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: case repository")
	}
	if orders == nil {
		return nil, errors.New("nil dependency: order gateway")
	}
	if submitter == nil {
		return nil, errors.New("nil dependency: case submitter")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if collector == nil {
		return nil, errors.New("nil dependency: metrics collector")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}

	return &Service{
		repo:      repo,
		orders:    orders,
		submitter: submitter,
		trm:       trm,
		metrics:   collector,
		logger:    logger,
		config:    config,
	}, nil
}

// ProcessOrder runs the placement policy for a freshly placed order.
// Orders outside the policy are skipped silently: placement must never
// fail because of the fraud integration.
func (s *Service) ProcessOrder(ctx context.Context, orderID int64) error {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderID, err)
	}

	scope := s.config.Signifyd.ForStore(ord.StoreCode)

	if !scope.Enabled {
		return nil
	}

	// No payment available for this order yet.
	if ord.State == order.StatePendingPayment {
		return nil
	}

	// Case creation for these methods is triggered by their own events.
	if contains(ownEventsMethods, ord.PaymentMethod) {
		return nil
	}

	if s.isRestricted(ord.PaymentMethod, ord.State, "create") {
		s.logger.Debugf("case creation for order %s with state %s is restricted",
			ord.IncrementID, ord.State)
		return nil
	}

	// A case may already exist when placement events are replayed.
	if _, err = s.repo.GetByOrderID(ctx, orderID); err == nil {
		return nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("load case for order %d: %w", orderID, err)
	}

	c := casedata.New(ord.ID, ord.IncrementID, ord.StoreCode)

	s.logger.Debugf("creating case for order %s (%d), state %s, payment method %s",
		ord.IncrementID, ord.ID, ord.State, ord.PaymentMethod)

	// Orders on async payment methods are parked without contacting the
	// risk service: case submission is deferred until their confirmation
	// signal arrives.
	if contains(s.config.Signifyd.AsyncPaymentMethodList(), ord.PaymentMethod) {
		return s.parkAsync(ctx, scope, c, ord)
	}

	code, err := s.submitter.Submit(ctx, ord)
	if err != nil {
		s.logger.Errorf("submit case for order %s: %s", ord.IncrementID, err)
	}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		s.holdOrder(scope, ord)

		if code != "" {
			c.SetCode(code)
			ord.SignifydCode = code
			c.MagentoStatus = casedata.InReview
			c.SetUpdated()
		}

		if err := s.repo.CreateCase(ctx, c); err != nil {
			return err
		}
		return s.orders.Save(ctx, ord)
	})
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create case for order %d: %w", orderID, err)
	}

	s.metrics.RecordCaseCreated(string(c.MagentoStatus))

	return nil
}

func (s *Service) parkAsync(ctx context.Context, scope config.Scope, c *casedata.Case, ord *order.Order) error {
	c.MagentoStatus = casedata.AsyncWait

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateCase(ctx, c); err != nil {
			return err
		}

		s.holdOrder(scope, ord)

		return s.orders.Save(ctx, ord)
	})
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("park case for order %d: %w", ord.ID, err)
	}

	s.logger.Debugf("case for order %s was not sent because of an async payment method",
		ord.IncrementID)
	s.metrics.RecordCaseCreated(string(casedata.AsyncWait))

	return nil
}

// holdOrder places the initial review hold. When both configured actions
// resolve to nothing no verdict will ever touch the order, so holding it
// would be pointless.
func (s *Service) holdOrder(scope config.Scope, ord *order.Order) {
	positive, _ := orderaction.ParseAction(scope.GuaranteePositiveAction)
	negative, _ := orderaction.ParseAction(scope.GuaranteeNegativeAction)

	if positive == orderaction.Nothing && negative == orderaction.Nothing {
		return
	}

	if contains(confirmationGatedMethods, ord.PaymentMethod) && !ord.EmailSent {
		s.logger.Debugf("order %s is not confirmed yet, not holding", ord.IncrementID)
		return
	}

	if err := ord.Hold(); err != nil {
		s.logger.Debugf("order %s can not be held because %s", ord.IncrementID, err)
		return
	}

	ord.AddStatusHistoryComment("Signifyd: after order place")
	s.logger.Debugf("order %s held pending review", ord.IncrementID)
}

// isRestricted checks the payment method and state restriction lists.
func (s *Service) isRestricted(paymentMethod string, state order.State, action string) bool {
	if state == "" {
		return true
	}

	if contains(s.config.Signifyd.RestrictedPaymentMethodList(), paymentMethod) {
		return true
	}

	return contains(s.config.Signifyd.RestrictedStates(action), string(state))
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
