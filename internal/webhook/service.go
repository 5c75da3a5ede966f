package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/KretovDmitry/fraud-review-service/internal/config"
	"github.com/KretovDmitry/fraud-review-service/internal/models/casedata"
	"github.com/KretovDmitry/fraud-review-service/internal/models/errs"
	"github.com/KretovDmitry/fraud-review-service/internal/orderaction"
	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
	"github.com/KretovDmitry/fraud-review-service/pkg/metrics"
)

// TrManager runs a function inside a managed database transaction.
// Satisfied by the trm/v2 manager.
type TrManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service is the webhook intake controller. One request is one attempt:
// authenticate, reconcile, execute and persist inside a single atomic
// unit of work.
type Service struct {
	repo     Repository
	orders   orderaction.Gateway
	executor *orderaction.Executor
	auth     *Authenticator
	trm      TrManager
	metrics  *metrics.Collector
	logger   logger.Logger
	config   *config.Config
}

func NewService(
	repo Repository,
	orders orderaction.Gateway,
	executor *orderaction.Executor,
	auth *Authenticator,
	trm TrManager,
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
	if executor == nil {
		return nil, errors.New("nil dependency: executor")
	}
	if auth == nil {
		return nil, errors.New("nil dependency: authenticator")
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
		repo:     repo,
		orders:   orders,
		executor: executor,
		auth:     auth,
		trm:      trm,
		metrics:  collector,
		logger:   logger,
		config:   config,
	}, nil
}

var _ ServerInterface = (*Service)(nil)

// Webhook intake (POST /api/webhooks/signifyd).
func (s *Service) HandleEvent(w http.ResponseWriter, r *http.Request, params EventParams) {
	// An empty body or a missing signature means somebody is checking
	// whether the endpoint is alive.
	if len(params.Body) == 0 || params.Signature == "" {
		s.respond(w, http.StatusOK, "You have successfully reached the webhook endpoint")
		s.metrics.RecordWebhook("probe")
		return
	}

	var payload Payload
	if err := json.Unmarshal(params.Body, &payload); err != nil {
		s.logger.Debugf("webhook: %s", errs.ErrMalformedPayload)
		s.respond(w, http.StatusBadRequest, errs.ErrMalformedPayload.Error())
		s.metrics.RecordWebhook("malformed")
		return
	}

	switch params.Topic {
	case TopicTest:
		// Test only verifies that the endpoint is reachable.
		s.respond(w, http.StatusOK, "")
		s.metrics.RecordWebhook("test")
		return

	case TopicCreation:
		// Case creation is driven by the order placement path, acting
		// here would create duplicate cases.
		s.respond(w, http.StatusOK, "Case creation will not be processed")
		s.metrics.RecordWebhook("creation")
		return
	}

	c, err := s.repo.GetByCode(r.Context(), payload.CaseID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// The diagnostic carries the order increment when the sender
			// provided one, the case id otherwise.
			id := payload.OrderID
			if id == "" {
				id = payload.CaseID
			}
			notFound := &errs.CaseNotFoundError{CaseID: id}
			s.logger.Debugf("webhook: %s", notFound)
			s.respond(w, http.StatusBadRequest, notFound.Error())
			s.metrics.RecordWebhook("unknown_case")
			return
		}
		s.logger.Errorf("webhook: load case %q: %s", payload.CaseID, err)
		s.respond(w, http.StatusForbidden, "")
		s.metrics.RecordWebhook("failed")
		return
	}

	if c.MagentoStatus == casedata.WaitingSubmission {
		s.logger.Debugf("webhook: case %q is not ready to be updated", c.Code)
		s.respond(w, http.StatusBadRequest, fmt.Sprintf("case %s is not ready to be updated", c.Code))
		s.metrics.RecordWebhook("not_ready")
		return
	}

	scope := s.config.Signifyd.ForStore(c.StoreCode)

	if !scope.Enabled {
		s.logger.Debugf("webhook: %s", errs.ErrDisabled)
		s.respond(w, http.StatusBadRequest, errs.ErrDisabled.Error())
		s.metrics.RecordWebhook("disabled")
		return
	}

	if !s.auth.Valid(params.Body, params.Signature, scope.WebhookSecret) {
		s.respond(w, http.StatusForbidden, "")
		s.metrics.RecordWebhook("unauthenticated")
		return
	}

	s.logger.Infof("processing case %s (%d)", c.OrderIncrement, c.OrderID)

	if err = s.process(r.Context(), scope, &payload); err != nil {
		// Failure is surfaced as forbidden rather than 5xx: the sender
		// must not retry through a different path, the scheduled resync
		// picks the case up instead.
		s.logger.Errorf("failed to save case data: %s", err)
		s.respond(w, http.StatusForbidden, "")
		s.metrics.RecordWebhook("failed")
		return
	}

	s.respond(w, http.StatusOK, "")
	s.metrics.RecordWebhook("processed")
}

// process runs reconcile and execute inside one atomic unit of work. The
// case is re-loaded under an exclusive lock so concurrent deliveries for
// the same case are serialized and each one merges into committed state.
func (s *Service) process(ctx context.Context, scope config.Scope, payload *Payload) error {
	return s.trm.Do(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByCodeForUpdate(ctx, payload.CaseID)
		if err != nil {
			return fmt.Errorf("%w: lock case: %s", errs.ErrPersistence, err)
		}

		ord, err := s.orders.GetByIDForUpdate(ctx, c.OrderID)
		if err != nil {
			return fmt.Errorf("%w: load order %d: %s", errs.ErrPersistence, c.OrderID, err)
		}

		merge := Merge(c, ord, payload)
		if merge.Changed {
			c.SetUpdated()
		}

		// The resolver runs only when the guarantee disposition changed
		// on this update: one action per disposition change, regardless
		// of how many times the event is delivered.
		if merge.GuaranteeChanged {
			res := orderaction.Resolve(
				c.Guarantee,
				c.Entries.HoldReleased,
				s.parseAction(scope.GuaranteePositiveAction),
				s.parseAction(scope.GuaranteeNegativeAction),
			)

			if err = s.executor.Execute(ctx, c, ord, res); err != nil {
				return err
			}
		}

		if err = s.repo.Save(ctx, c); err != nil {
			return fmt.Errorf("%w: save case: %s", errs.ErrPersistence, err)
		}
		if err = s.orders.Save(ctx, ord); err != nil {
			return fmt.Errorf("%w: save order: %s", errs.ErrPersistence, err)
		}

		return nil
	})
}

func (s *Service) parseAction(name string) orderaction.Action {
	action, ok := orderaction.ParseAction(name)
	if !ok {
		s.logger.Errorf("unknown configured guarantee action %q, treating as nothing", name)
		return orderaction.Nothing
	}
	return action
}

func (s *Service) respond(w http.ResponseWriter, code int, body string) {
	w.WriteHeader(code)
	if body != "" {
		if _, err := w.Write([]byte(body)); err != nil {
			s.logger.Errorf("write response: %s", err)
		}
	}
}
