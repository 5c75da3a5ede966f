package placement

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/KretovDmitry/fraud-review-service/internal/jwt"
	"github.com/KretovDmitry/fraud-review-service/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// OrderPlacedParams defines parameters for OrderPlaced.
type OrderPlacedParams struct {
	OrderID int64 `json:"order_id"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Placement trigger (POST /api/orders/placed).
	OrderPlaced(w http.ResponseWriter, r *http.Request, params OrderPlacedParams)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
	HandlerMiddlewares []MiddlewareFunc
}

type MiddlewareFunc func(http.Handler) http.Handler

// OrderPlaced operation middleware.
func (siw *ServerInterfaceWrapper) OrderPlaced(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var params OrderPlacedParams

	data, err := io.ReadAll(r.Body)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	r.Body.Close()

	if err = json.Unmarshal(data, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	// ------------- Required JSON body parameter "order_id" ----------

	if params.OrderID == 0 {
		siw.ErrorHandlerFunc(w, r,
			&errs.RequiredJSONBodyParamError{ParamName: "order_id"})
		return
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.OrderPlaced(w, r, params)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r.WithContext(ctx))
}

// OrderPlaced runs the placement hold policy for the given order.
// The trigger responds 202: the policy outcome is recorded on the order
// and the case, not in the response body.
func (s *Service) OrderPlaced(w http.ResponseWriter, r *http.Request, params OrderPlacedParams) {
	if err := s.ProcessOrder(r.Context(), params.OrderID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			http.Error(w, fmt.Sprintf("order %d not found", params.OrderID), http.StatusBadRequest)
			return
		}
		s.logger.Errorf("placement: order %d: %s", params.OrderID, err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

var _ ServerInterface = (*Service)(nil)

// Middleware authenticates the calling service with a bearer JWT.
func (s *Service) Middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			http.Error(w, "authorization token required", http.StatusUnauthorized)
			return
		}

		service, err := jwt.GetService(token, s.config.JWT.SigningKey)
		if err != nil {
			s.logger.Debugf("placement: parse token: %s", err)
			http.Error(w, "invalid authorization token", http.StatusUnauthorized)
			return
		}

		s.logger.Debugf("placement trigger from %q", service)

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
		HandlerMiddlewares: options.Middlewares,
	}

	r.Post(options.BaseURL+"/orders/placed", wrapper.OrderPlaced)

	return r
}
