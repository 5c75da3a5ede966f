package placement

import (
	"context"
	"database/sql"
	"errors"

	"github.com/KretovDmitry/fraud-review-service/internal/models/casedata"
	"github.com/KretovDmitry/fraud-review-service/internal/models/errs"
	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the slice of the case store the placement path needs.
type Repository interface {
	CreateCase(ctx context.Context, c *casedata.Case) error
	GetByOrderID(ctx context.Context, orderID int64) (*casedata.Case, error)
}

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

var _ Repository = (*Repo)(nil)

func (r *Repo) CreateCase(ctx context.Context, c *casedata.Case) error {
	const query = `
		INSERT INTO signifyd_case
			(order_id, order_increment, store_code, code, signifyd_status,
			 score, guarantee, magento_status, entries, retries, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query,
		c.OrderID,
		c.OrderIncrement,
		c.StoreCode,
		c.Code,
		c.SignifydStatus,
		c.Score,
		c.Guarantee,
		c.MagentoStatus,
		c.Entries.Encode(),
		c.Retries,
		c.Created,
		c.Updated,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return errs.ErrAlreadyExists
		}
		return err
	}

	return nil
}

func (r *Repo) GetByOrderID(ctx context.Context, orderID int64) (*casedata.Case, error) {
	const query = `
		SELECT order_id, order_increment, store_code, code, signifyd_status,
			score, guarantee, magento_status, entries, retries, created, updated
		FROM signifyd_case WHERE order_id = $1
	`

	c := new(casedata.Case)
	var entries []byte

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, orderID).Scan(
		&c.OrderID,
		&c.OrderIncrement,
		&c.StoreCode,
		&c.Code,
		&c.SignifydStatus,
		&c.Score,
		&c.Guarantee,
		&c.MagentoStatus,
		&entries,
		&c.Retries,
		&c.Created,
		&c.Updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	c.Entries = casedata.DecodeEntries(entries)

	return c, nil
}
