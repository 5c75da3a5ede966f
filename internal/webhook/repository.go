package webhook

import (
	"context"
	"database/sql"
	"errors"

	"github.com/KretovDmitry/fraud-review-service/internal/models/casedata"
	"github.com/KretovDmitry/fraud-review-service/internal/models/errs"
	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
)

// Repository is the case store consumed by the intake controller.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*casedata.Case, error)
	// GetByCodeForUpdate loads the case under an exclusive row lock,
	// serializing concurrent deliveries for the same case. Must be
	// called inside a managed transaction.
	GetByCodeForUpdate(ctx context.Context, code string) (*casedata.Case, error)
	Save(ctx context.Context, c *casedata.Case) error
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

const caseColumns = `
	order_id, order_increment, store_code, code, signifyd_status, score,
	guarantee, magento_status, entries, retries, created, updated`

func (r *Repo) GetByCode(ctx context.Context, code string) (*casedata.Case, error) {
	const query = "SELECT" + caseColumns + " FROM signifyd_case WHERE code = $1"

	return r.scanCase(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, code))
}

func (r *Repo) GetByCodeForUpdate(ctx context.Context, code string) (*casedata.Case, error) {
	const query = "SELECT" + caseColumns + " FROM signifyd_case WHERE code = $1 FOR UPDATE"

	return r.scanCase(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, code))
}

func (r *Repo) scanCase(row *sql.Row) (*casedata.Case, error) {
	c := new(casedata.Case)
	var entries []byte

	err := row.Scan(
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

	// Malformed stored entries decode to an empty mapping, never an error.
	c.Entries = casedata.DecodeEntries(entries)

	return c, nil
}

func (r *Repo) Save(ctx context.Context, c *casedata.Case) error {
	const query = `
		UPDATE signifyd_case SET
			code = $2,
			signifyd_status = $3,
			score = $4,
			guarantee = $5,
			magento_status = $6,
			entries = $7,
			retries = $8,
			updated = $9
		WHERE order_id = $1;
	`

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query,
		c.OrderID,
		c.Code,
		c.SignifydStatus,
		c.Score,
		c.Guarantee,
		c.MagentoStatus,
		c.Entries.Encode(),
		c.Retries,
		c.Updated,
	)

	return err
}
