package placement

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KretovDmitry/fraud-review-service/internal/jwt"
	"github.com/KretovDmitry/fraud-review-service/internal/models/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPlacedEndpoint(t *testing.T) {
	cfg := placementConfig()
	cfg.JWT.SigningKey = "signing-key"

	e := newEnv(t, cfg, placedOrder(42, "checkmo"))

	handler := HandlerWithOptions(e.service, ChiServerOptions{
		BaseURL:     "/api",
		Middlewares: []MiddlewareFunc{e.service.Middleware},
	})

	token, err := jwt.BuildString("commerce-platform", "signing-key", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		body     string
		token    string
		wantCode int
	}{
		{"accepted", `{"order_id":42}`, token, http.StatusAccepted},
		{"missing token", `{"order_id":42}`, "", http.StatusUnauthorized},
		{"bad token", `{"order_id":42}`, "Bearer nope", http.StatusUnauthorized},
		{"missing order id", `{}`, token, http.StatusBadRequest},
		{"malformed body", `{"order_id":`, token, http.StatusBadRequest},
		{"unknown order", `{"order_id":7}`, token, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/orders/placed", strings.NewReader(tt.body))
			if tt.token != "" {
				r.Header.Set("Authorization", tt.token)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestOrderPlacedEndpointIsIdempotent(t *testing.T) {
	cfg := placementConfig()
	cfg.JWT.SigningKey = "signing-key"

	e := newEnv(t, cfg, placedOrder(42, "checkmo"))

	handler := HandlerWithOptions(e.service, ChiServerOptions{
		BaseURL:     "/api",
		Middlewares: []MiddlewareFunc{e.service.Middleware},
	})

	token, err := jwt.BuildString("commerce-platform", "signing-key", time.Hour)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/orders/placed", strings.NewReader(`{"order_id":42}`))
		r.Header.Set("Authorization", token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	// The replay found the existing case and held the order only once.
	require.Len(t, e.orders.saved, 1)
	assert.Equal(t, order.StateHolded, e.orders.saved[0].State)
}
