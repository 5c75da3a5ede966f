package webhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/KretovDmitry/fraud-review-service/internal/config"
	"github.com/KretovDmitry/fraud-review-service/internal/models/casedata"
	"github.com/KretovDmitry/fraud-review-service/internal/models/errs"
	"github.com/KretovDmitry/fraud-review-service/internal/models/order"
	"github.com/KretovDmitry/fraud-review-service/internal/orderaction"
	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
	"github.com/KretovDmitry/fraud-review-service/pkg/metrics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "top-secret"

// Lock in case of t.Parallel call.
type mockCaseStore struct {
	cases   map[string]*casedata.Case
	saved   []*casedata.Case
	saveErr error
	loads   int
	mu      sync.Mutex
}

func (m *mockCaseStore) GetByCode(_ context.Context, code string) (*casedata.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	c, ok := m.cases[code]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockCaseStore) GetByCodeForUpdate(ctx context.Context, code string) (*casedata.Case, error) {
	return m.GetByCode(ctx, code)
}

func (m *mockCaseStore) Save(_ context.Context, c *casedata.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *c
	m.saved = append(m.saved, &copied)
	m.cases[c.Code] = &copied
	return nil
}

type mockOrderGateway struct {
	orders map[int64]*order.Order
	saved  []*order.Order
	mu     sync.Mutex
}

func (m *mockOrderGateway) GetByID(_ context.Context, id int64) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord, ok := m.orders[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *ord
	return &copied, nil
}

func (m *mockOrderGateway) GetByIDForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	return m.GetByID(ctx, id)
}

// Save mirrors the real gateway: history comments are flushed
// on persist and do not survive a reload.
func (m *mockOrderGateway) Save(_ context.Context, ord *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	recorded := *ord
	m.saved = append(m.saved, &recorded)
	stored := *ord
	stored.History = nil
	m.orders[ord.ID] = &stored
	ord.History = nil
	return nil
}

func (m *mockOrderGateway) SaveInvoice(context.Context, *order.Invoice) error { return nil }

type mockSender struct{}

func (mockSender) SendInvoice(context.Context, *order.Order, *order.Invoice) error { return nil }

// mockTrManager runs the unit of work without a database.
type mockTrManager struct{}

func (mockTrManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testConfig() *config.Config {
	disabled := false
	return &config.Config{
		Signifyd: config.Signifyd{
			Enabled:                 true,
			WebhookSecret:           testSecret,
			GuaranteePositiveAction: "unhold",
			GuaranteeNegativeAction: "cancel",
			Stores: []config.StoreScope{
				{Code: "disabled_store", Enabled: &disabled},
			},
		},
	}
}

type fixture struct {
	handler http.Handler
	cases   *mockCaseStore
	orders  *mockOrderGateway
}

func newFixture(t *testing.T, cases *mockCaseStore, orders *mockOrderGateway) *fixture {
	t.Helper()

	log := logger.NewForTest()
	collector := metrics.NewCollector()

	executor, err := orderaction.NewExecutor(orders, mockSender{}, collector, log)
	require.NoError(t, err)

	service, err := NewService(cases, orders, executor, NewAuthenticator(log),
		mockTrManager{}, collector, log, testConfig())
	require.NoError(t, err)

	return &fixture{
		handler: HandlerWithOptions(service, ChiServerOptions{BaseURL: "/api"}),
		cases:   cases,
		orders:  orders,
	}
}

func (f *fixture) post(t *testing.T, body []byte, signature, topic string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/signifyd", bytes.NewReader(body))
	if signature != "" {
		r.Header.Set(HeaderSignature, signature)
	}
	if topic != "" {
		r.Header.Set(HeaderTopic, topic)
	}
	w := httptest.NewRecorder()

	f.handler.ServeHTTP(w, r)

	return w
}

func inReviewCase() *casedata.Case {
	c := casedata.New(1, "100000001", "default")
	c.SetCode("C1")
	c.MagentoStatus = casedata.InReview
	return c
}

func holdedTestOrder() *order.Order {
	ord := &order.Order{
		ID:          1,
		IncrementID: "100000001",
		StoreCode:   "default",
		State:       order.StateProcessing,
		Status:      "processing",
		GrandTotal:  decimal.NewFromInt(100),
		QtyOrdered:  decimal.NewFromInt(1),
	}
	if err := ord.Hold(); err != nil {
		panic(err)
	}
	return ord
}

func TestHandleEventReachabilityProbe(t *testing.T) {
	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{}},
		&mockOrderGateway{orders: map[int64]*order.Order{}})

	tests := []struct {
		name      string
		body      []byte
		signature string
	}{
		{"empty body", nil, "whatever"},
		{"empty signature", []byte(`{"caseId":"C1"}`), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.post(t, tt.body, tt.signature, "cases/review")

			result := w.Result()
			defer result.Body.Close()

			body, err := io.ReadAll(result.Body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, result.StatusCode)
			assert.Contains(t, string(body), "successfully reached the webhook endpoint")
			assert.Zero(t, f.cases.loads)
		})
	}
}

func TestHandleEventMalformedPayload(t *testing.T) {
	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{}},
		&mockOrderGateway{orders: map[int64]*order.Order{}})

	w := f.post(t, []byte(`{"caseId":`), "some-signature", "cases/review")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, f.cases.loads)
}

func TestHandleEventTestTopic(t *testing.T) {
	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{}},
		&mockOrderGateway{orders: map[int64]*order.Order{}})

	body := []byte(`{"caseId":"C1"}`)
	w := f.post(t, body, sign(body, testSecret), TopicTest)

	// Reachability only: no lookup, no mutation.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, f.cases.loads)
	assert.Empty(t, f.cases.saved)
}

func TestHandleEventCreationTopic(t *testing.T) {
	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{}},
		&mockOrderGateway{orders: map[int64]*order.Order{}})

	body := []byte(`{"caseId":"C1"}`)
	w := f.post(t, body, sign(body, testSecret), TopicCreation)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Case creation will not be processed")
	assert.Zero(t, f.cases.loads)
}

func TestHandleEventUnknownCase(t *testing.T) {
	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{}},
		&mockOrderGateway{orders: map[int64]*order.Order{}})

	tests := []struct {
		name   string
		body   []byte
		wantID string
	}{
		{"diagnostic carries the order increment", []byte(`{"caseId":"GHOST","orderId":"100000099"}`), "100000099"},
		{"falls back to the case id", []byte(`{"caseId":"GHOST"}`), "GHOST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.post(t, tt.body, sign(tt.body, testSecret), "cases/review")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "not found on Magento")
			assert.Contains(t, w.Body.String(), tt.wantID)
		})
	}
}

func TestHandleEventCaseNotReady(t *testing.T) {
	c := inReviewCase()
	c.MagentoStatus = casedata.WaitingSubmission

	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{"C1": c}},
		&mockOrderGateway{orders: map[int64]*order.Order{}})

	body := []byte(`{"caseId":"C1"}`)
	w := f.post(t, body, sign(body, testSecret), "cases/review")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not ready to be updated")
}

func TestHandleEventDisabledScope(t *testing.T) {
	c := inReviewCase()
	c.StoreCode = "disabled_store"

	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{"C1": c}},
		&mockOrderGateway{orders: map[int64]*order.Order{}})

	body := []byte(`{"caseId":"C1"}`)
	w := f.post(t, body, sign(body, testSecret), "cases/review")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.cases.saved)
}

func TestHandleEventInvalidSignature(t *testing.T) {
	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{"C1": inReviewCase()}},
		&mockOrderGateway{orders: map[int64]*order.Order{1: holdedTestOrder()}})

	body := []byte(`{"caseId":"C1","guaranteeDisposition":"APPROVED"}`)
	w := f.post(t, body, sign(body, "wrong-secret"), "cases/review")

	// No mutation, no reconciliation attempted.
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.cases.saved)
	assert.Empty(t, f.orders.saved)
}

func TestHandleEventApprovedUnholdsOrder(t *testing.T) {
	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{"C1": inReviewCase()}},
		&mockOrderGateway{orders: map[int64]*order.Order{1: holdedTestOrder()}})

	body := []byte(`{"caseId":"C1","guaranteeDisposition":"APPROVED"}`)
	w := f.post(t, body, sign(body, testSecret), "cases/review")

	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.cases.saved, 1)
	assert.Equal(t, casedata.Completed, f.cases.saved[0].MagentoStatus)
	assert.Equal(t, casedata.GuaranteeApproved, f.cases.saved[0].Guarantee)
	assert.Zero(t, f.cases.saved[0].Retries)

	require.Len(t, f.orders.saved, 1)
	assert.Equal(t, order.StateProcessing, f.orders.saved[0].State)
}

func TestHandleEventReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{"C1": inReviewCase()}},
		&mockOrderGateway{orders: map[int64]*order.Order{1: holdedTestOrder()}})

	body := []byte(`{"caseId":"C1","guaranteeDisposition":"APPROVED"}`)

	w := f.post(t, body, sign(body, testSecret), "cases/review")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.post(t, body, sign(body, testSecret), "cases/review")
	require.Equal(t, http.StatusOK, w.Code)

	// The replay observes the already-changed disposition: the case and
	// the order are persisted as-is, no second unhold is attempted.
	require.Len(t, f.orders.saved, 2)
	assert.Equal(t, f.orders.saved[0].State, f.orders.saved[1].State)
	assert.Empty(t, f.orders.saved[1].History)
}

func TestHandleEventDeclinedCancelFullyInvoiced(t *testing.T) {
	ord := holdedTestOrder()
	ord.QtyInvoiced = ord.QtyOrdered

	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{"C1": inReviewCase()}},
		&mockOrderGateway{orders: map[int64]*order.Order{1: ord}})

	body := []byte(`{"caseId":"C1","guaranteeDisposition":"DECLINED"}`)
	w := f.post(t, body, sign(body, testSecret), "cases/review")

	require.Equal(t, http.StatusOK, w.Code)

	// Cancel was downgraded to a no-op, the case is still completed.
	require.Len(t, f.cases.saved, 1)
	assert.Equal(t, casedata.Completed, f.cases.saved[0].MagentoStatus)

	require.Len(t, f.orders.saved, 1)
	assert.NotEqual(t, order.StateCanceled, f.orders.saved[0].State)
}

func TestHandleEventPendingWaits(t *testing.T) {
	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{"C1": inReviewCase()}},
		&mockOrderGateway{orders: map[int64]*order.Order{1: holdedTestOrder()}})

	body := []byte(`{"caseId":"C1","guaranteeDisposition":"PENDING"}`)
	w := f.post(t, body, sign(body, testSecret), "cases/review")

	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.cases.saved, 1)
	assert.Equal(t, casedata.InReview, f.cases.saved[0].MagentoStatus)
	assert.Equal(t, order.StateHolded, f.orders.saved[0].State)
}

func TestHandleEventHoldReleasedOverride(t *testing.T) {
	c := inReviewCase()
	c.Entries.HoldReleased = true

	ord := holdedTestOrder()
	require.NoError(t, ord.Unhold())

	f := newFixture(t, &mockCaseStore{cases: map[string]*casedata.Case{"C1": c}},
		&mockOrderGateway{orders: map[int64]*order.Order{1: ord}})

	body := []byte(`{"caseId":"C1","guaranteeDisposition":"DECLINED"}`)
	w := f.post(t, body, sign(body, testSecret), "cases/review")

	require.Equal(t, http.StatusOK, w.Code)

	// The configured cancel is overridden to nothing, the order stays.
	require.Len(t, f.orders.saved, 1)
	assert.Equal(t, order.StateProcessing, f.orders.saved[0].State)
	assert.Equal(t, casedata.Completed, f.cases.saved[0].MagentoStatus)
}

func TestHandleEventPersistenceFailure(t *testing.T) {
	store := &mockCaseStore{
		cases:   map[string]*casedata.Case{"C1": inReviewCase()},
		saveErr: errors.New("connection reset"),
	}

	f := newFixture(t, store, &mockOrderGateway{orders: map[int64]*order.Order{1: holdedTestOrder()}})

	body := []byte(`{"caseId":"C1","guaranteeDisposition":"APPROVED"}`)
	w := f.post(t, body, sign(body, testSecret), "cases/review")

	// Surfaced as forbidden by design, nothing persisted.
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.orders.saved)
}
