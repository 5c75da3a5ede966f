package orderaction

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/KretovDmitry/fraud-review-service/internal/models/errs"
	"github.com/KretovDmitry/fraud-review-service/internal/models/order"
	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
)

// Repo is the Postgres order gateway.
type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Gateway = (*Repo)(nil)

const orderColumns = `
	id, increment_id, store_code, payment_method, state, status,
	hold_before_state, hold_before_status, grand_total, total_invoiced,
	qty_ordered, qty_invoiced, email_sent, hold_disallowed, in_process,
	customer_email, signifyd_code, signifyd_guarantee, signifyd_score,
	created_at, updated_at`

func (r *Repo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	const query = "SELECT" + orderColumns + " FROM orders WHERE id = $1"

	return r.scanOrder(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate loads the order under an exclusive row lock. Must be
// called inside a managed transaction.
func (r *Repo) GetByIDForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	const query = "SELECT" + orderColumns + " FROM orders WHERE id = $1 FOR UPDATE"

	return r.scanOrder(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *Repo) scanOrder(row *sql.Row) (*order.Order, error) {
	ord := new(order.Order)
	holdBeforeState := new(sql.NullString)
	holdBeforeStatus := new(sql.NullString)

	err := row.Scan(
		&ord.ID,
		&ord.IncrementID,
		&ord.StoreCode,
		&ord.PaymentMethod,
		&ord.State,
		&ord.Status,
		holdBeforeState,
		holdBeforeStatus,
		&ord.GrandTotal,
		&ord.TotalInvoiced,
		&ord.QtyOrdered,
		&ord.QtyInvoiced,
		&ord.EmailSent,
		&ord.HoldDisallowed,
		&ord.InProcess,
		&ord.CustomerEmail,
		&ord.SignifydCode,
		&ord.SignifydGuarantee,
		&ord.SignifydScore,
		&ord.CreatedAt,
		&ord.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	ord.HoldBeforeState = order.State(holdBeforeState.String)
	ord.HoldBeforeStatus = holdBeforeStatus.String

	return ord, nil
}

// Save persists the mutable order state plus any status history comments
// accumulated during this unit of work.
func (r *Repo) Save(ctx context.Context, ord *order.Order) error {
	const query = `
		UPDATE orders SET
			state = $2,
			status = $3,
			hold_before_state = $4,
			hold_before_status = $5,
			total_invoiced = $6,
			qty_invoiced = $7,
			in_process = $8,
			signifyd_code = $9,
			signifyd_guarantee = $10,
			signifyd_score = $11,
			updated_at = now()
		WHERE id = $1;
	`

	tr := r.getter.DefaultTrOrDB(ctx, r.db)

	_, err := tr.ExecContext(ctx, query,
		ord.ID,
		ord.State,
		ord.Status,
		nullIfEmpty(string(ord.HoldBeforeState)),
		nullIfEmpty(ord.HoldBeforeStatus),
		ord.TotalInvoiced,
		ord.QtyInvoiced,
		ord.InProcess,
		ord.SignifydCode,
		ord.SignifydGuarantee,
		ord.SignifydScore,
	)
	if err != nil {
		return err
	}

	const historyQuery = `
		INSERT INTO order_status_history (order_id, status, comment, created_at)
		VALUES ($1, $2, $3, $4);
	`

	for _, comment := range ord.History {
		_, err = tr.ExecContext(ctx, historyQuery,
			ord.ID, comment.Status, comment.Comment, comment.CreatedAt)
		if err != nil {
			return err
		}
	}

	// Comments are persisted once per unit of work.
	ord.History = nil

	return nil
}

func (r *Repo) SaveInvoice(ctx context.Context, inv *order.Invoice) error {
	const query = `
		INSERT INTO invoices
			(id, increment_id, order_id, grand_total, qty, capture_case, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query,
		inv.ID,
		inv.IncrementID,
		inv.OrderID,
		inv.GrandTotal,
		inv.Qty,
		inv.CaptureCase,
		strings.Join(inv.Comments, "\n"),
		inv.CreatedAt,
	)

	return err
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
