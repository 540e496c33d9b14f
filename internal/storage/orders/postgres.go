// Package orders persists orders, their ledger entries, amendments,
// currencies and per-user preferences in Postgres.
package orders

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/errs"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

const initSchemaQuery = `
CREATE TABLE IF NOT EXISTS currencies (
	code TEXT PRIMARY KEY,
	base_rate_buy NUMERIC,
	base_rate_sell NUMERIC,
	conversion_rate_buy NUMERIC,
	conversion_rate_sell NUMERIC,
	active BOOL NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS orders (
	id BIGSERIAL PRIMARY KEY,
	customer_id BIGINT NOT NULL,
	handler_id BIGINT,
	from_currency TEXT NOT NULL,
	to_currency TEXT NOT NULL,
	amount_buy NUMERIC NOT NULL,
	amount_sell NUMERIC NOT NULL,
	rate NUMERIC NOT NULL,
	actual_amount_buy NUMERIC,
	actual_amount_sell NUMERIC,
	actual_rate NUMERIC,
	is_flex BOOL NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL DEFAULT 'pending',
	remarks TEXT,
	profit_amount NUMERIC,
	profit_currency TEXT,
	profit_account_id BIGINT,
	service_charge_amount NUMERIC,
	service_charge_currency TEXT,
	service_charge_account_id BIGINT,
	created_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS ledger_entries (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(id),
	kind TEXT NOT NULL,
	amount NUMERIC NOT NULL,
	account_id BIGINT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	image_path TEXT
);
CREATE TABLE IF NOT EXISTS amendments (
	id TEXT PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(id),
	payload JSONB NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS preferences (
	user_id BIGINT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (user_id, key)
);`

func NewPostgresStore(ctx context.Context, databaseURI string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, errors.Wrap(err, "open pgx pool")
	}

	store := &PostgresStore{db: db}
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}
	if _, err := db.Exec(ctx, initSchemaQuery); err != nil {
		return nil, errors.Wrap(err, "init schema")
	}
	return store, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// optText maps a value Optional to a nullable SQL parameter.
func optText[T any](o entity.Optional[T], render func(T) any) any {
	if v, ok := o.Get(); ok {
		return render(v)
	}
	return nil
}

func decParam(d decimal.Decimal) any { return d.String() }
func int64Param(v int64) any         { return v }
func strParam(v string) any          { return v }

func scanOptDecimal(src *string) entity.Optional[decimal.Decimal] {
	if src == nil {
		return entity.None[decimal.Decimal]()
	}
	v, err := decimal.NewFromString(*src)
	if err != nil {
		return entity.None[decimal.Decimal]()
	}
	return entity.Some(v)
}

func scanOptString(src *string) entity.Optional[string] {
	if src == nil {
		return entity.None[string]()
	}
	return entity.Some(*src)
}

func scanOptInt64(src *int64) entity.Optional[int64] {
	if src == nil {
		return entity.None[int64]()
	}
	return entity.Some(*src)
}

func scanDecimal(src string) (decimal.Decimal, error) {
	return decimal.NewFromString(src)
}

const orderColumns = `id, customer_id, handler_id, from_currency, to_currency,
	amount_buy::text, amount_sell::text, rate::text,
	actual_amount_buy::text, actual_amount_sell::text, actual_rate::text,
	is_flex, status, remarks,
	profit_amount::text, profit_currency, profit_account_id,
	service_charge_amount::text, service_charge_currency, service_charge_account_id`

func scanOrder(row pgx.Row) (entity.Order, error) {
	var (
		o                                 entity.Order
		handlerID                         *int64
		amountBuy, amountSell, rate       string
		actualBuy, actualSell, actualRate *string
		remarks                           *string
		profitAmount, chargeAmount        *string
		profitCurrency, chargeCurrency    *string
		profitAccount, chargeAccount      *int64
		status                            string
	)

	err := row.Scan(&o.ID, &o.CustomerID, &handlerID, &o.Pair.From, &o.Pair.To,
		&amountBuy, &amountSell, &rate,
		&actualBuy, &actualSell, &actualRate,
		&o.IsFlex, &status, &remarks,
		&profitAmount, &profitCurrency, &profitAccount,
		&chargeAmount, &chargeCurrency, &chargeAccount)
	if err != nil {
		return entity.Order{}, err
	}

	if o.AmountBuy, err = scanDecimal(amountBuy); err != nil {
		return entity.Order{}, errors.Wrap(err, "decode amount_buy")
	}
	if o.AmountSell, err = scanDecimal(amountSell); err != nil {
		return entity.Order{}, errors.Wrap(err, "decode amount_sell")
	}
	if o.Rate, err = scanDecimal(rate); err != nil {
		return entity.Order{}, errors.Wrap(err, "decode rate")
	}

	o.HandlerID = scanOptInt64(handlerID)
	o.ActualAmountBuy = scanOptDecimal(actualBuy)
	o.ActualAmountSell = scanOptDecimal(actualSell)
	o.ActualRate = scanOptDecimal(actualRate)
	o.Status = entity.OrderStatus(status)
	o.Remarks = scanOptString(remarks)
	o.ProfitAmount = scanOptDecimal(profitAmount)
	o.ProfitCurrency = scanOptString(profitCurrency)
	o.ProfitAccountID = scanOptInt64(profitAccount)
	o.ServiceChargeAmount = scanOptDecimal(chargeAmount)
	o.ServiceChargeCurrency = scanOptString(chargeCurrency)
	o.ServiceChargeAccountID = scanOptInt64(chargeAccount)
	return o, nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o entity.Order) (int64, error) {
	const query = `INSERT INTO orders (customer_id, handler_id, from_currency, to_currency,
		amount_buy, amount_sell, rate, actual_amount_buy, actual_amount_sell, actual_rate,
		is_flex, status, remarks, profit_amount, profit_currency, profit_account_id,
		service_charge_amount, service_charge_currency, service_charge_account_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING id`

	var id int64
	err := s.db.QueryRow(ctx, query,
		o.CustomerID, optText(o.HandlerID, int64Param), o.Pair.From, o.Pair.To,
		o.AmountBuy.String(), o.AmountSell.String(), o.Rate.String(),
		optText(o.ActualAmountBuy, decParam), optText(o.ActualAmountSell, decParam), optText(o.ActualRate, decParam),
		o.IsFlex, string(o.Status), optText(o.Remarks, strParam),
		optText(o.ProfitAmount, decParam), optText(o.ProfitCurrency, strParam), optText(o.ProfitAccountID, int64Param),
		optText(o.ServiceChargeAmount, decParam), optText(o.ServiceChargeCurrency, strParam), optText(o.ServiceChargeAccountID, int64Param),
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert order")
	}
	return id, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.Order{}, errs.ErrOrderNotFound
	}
	if err != nil {
		return entity.Order{}, errors.Wrap(err, "select order")
	}
	return o, nil
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, o entity.Order) error {
	return s.updateOrderTx(ctx, s.db, o)
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id int64, status entity.OrderStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, orderID int64) ([]entity.LedgerEntry, error) {
	const query = `SELECT id, order_id, kind, amount::text, account_id, status, image_path
		FROM ledger_entries WHERE order_id = $1 ORDER BY id`

	rows, err := s.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select ledger entries")
	}
	defer rows.Close()

	var entries []entity.LedgerEntry
	for rows.Next() {
		var (
			e         entity.LedgerEntry
			amount    string
			kind      string
			status    string
			imagePath *string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &kind, &amount, &e.AccountID, &status, &imagePath); err != nil {
			return nil, errors.Wrap(err, "scan ledger entry")
		}
		if e.Amount, err = scanDecimal(amount); err != nil {
			return nil, errors.Wrap(err, "decode entry amount")
		}
		e.Kind = entity.EntryKind(kind)
		e.Status = entity.EntryStatus(status)
		e.ImagePath = scanOptString(imagePath)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) AddEntry(ctx context.Context, e entity.LedgerEntry) (int64, error) {
	const query = `INSERT INTO ledger_entries (order_id, kind, amount, account_id, status, image_path)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`

	var id int64
	err := s.db.QueryRow(ctx, query, e.OrderID, string(e.Kind), e.Amount.String(),
		e.AccountID, string(e.Status), optText(e.ImagePath, strParam)).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert ledger entry")
	}
	return id, nil
}

func (s *PostgresStore) ConfirmEntry(ctx context.Context, orderID, entryID int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE ledger_entries SET status = 'confirmed' WHERE id = $1 AND order_id = $2`,
		entryID, orderID)
	if err != nil {
		return errors.Wrap(err, "confirm ledger entry")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrEntryNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, orderID, entryID int64) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM ledger_entries WHERE id = $1 AND order_id = $2`, entryID, orderID)
	if err != nil {
		return errors.Wrap(err, "delete ledger entry")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrEntryNotFound
	}
	return nil
}

type amendmentPayload struct {
	Proposal    entity.OrderProposal `json:"proposal"`
	Receipts    []entity.LedgerEntry `json:"receipts"`
	Payments    []entity.LedgerEntry `json:"payments"`
	Reason      string               `json:"reason"`
	PriorStatus entity.OrderStatus   `json:"priorStatus"`
}

func (s *PostgresStore) CreateAmendment(ctx context.Context, a entity.AmendmentRequest) error {
	payload, err := json.Marshal(amendmentPayload{
		Proposal:    a.Proposal,
		Receipts:    a.Receipts,
		Payments:    a.Payments,
		Reason:      a.Reason,
		PriorStatus: a.PriorStatus,
	})
	if err != nil {
		return errors.Wrap(err, "marshal amendment payload")
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO amendments (id, order_id, payload, status, created_at) VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.OrderID, payload, string(a.Status), a.CreatedAt)
	return errors.Wrap(err, "insert amendment")
}

func (s *PostgresStore) GetAmendment(ctx context.Context, id string) (entity.AmendmentRequest, error) {
	const query = `SELECT id, order_id, payload, status, created_at FROM amendments WHERE id = $1`

	var (
		a       entity.AmendmentRequest
		payload []byte
		status  string
	)
	err := s.db.QueryRow(ctx, query, id).Scan(&a.ID, &a.OrderID, &payload, &status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.AmendmentRequest{}, errs.ErrAmendmentNotFound
	}
	if err != nil {
		return entity.AmendmentRequest{}, errors.Wrap(err, "select amendment")
	}

	var body amendmentPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return entity.AmendmentRequest{}, errors.Wrap(err, "decode amendment payload")
	}
	a.Proposal = body.Proposal
	a.Receipts = body.Receipts
	a.Payments = body.Payments
	a.Reason = body.Reason
	a.PriorStatus = body.PriorStatus
	a.Status = entity.AmendmentStatus(status)
	return a, nil
}

func (s *PostgresStore) SetAmendmentStatus(ctx context.Context, id string, status entity.AmendmentStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE amendments SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return errors.Wrap(err, "update amendment status")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrAmendmentNotFound
	}
	return nil
}

// ApplyAmendment swaps the order row and its ledger for the amended
// versions and closes the amendment, all in one transaction.
func (s *PostgresStore) ApplyAmendment(ctx context.Context, amendmentID string, o entity.Order, entries []entity.LedgerEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin apply amendment")
	}
	defer tx.Rollback(ctx)

	if err := s.updateOrderTx(ctx, tx, o); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ledger_entries WHERE order_id = $1`, o.ID); err != nil {
		return errors.Wrap(err, "clear ledger entries")
	}
	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO ledger_entries (order_id, kind, amount, account_id, status, image_path)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, string(e.Kind), e.Amount.String(), e.AccountID, string(e.Status),
			optText(e.ImagePath, strParam))
		if err != nil {
			return errors.Wrap(err, "insert amended ledger entry")
		}
	}

	tag, err := tx.Exec(ctx, `UPDATE amendments SET status = $2 WHERE id = $1`,
		amendmentID, string(entity.AmendmentApplied))
	if err != nil {
		return errors.Wrap(err, "close amendment")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrAmendmentNotFound
	}

	return tx.Commit(ctx)
}

// execQuerier is satisfied by both the pool and a transaction.
type execQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) updateOrderTx(ctx context.Context, q execQuerier, o entity.Order) error {
	const query = `UPDATE orders SET
		handler_id = $2, amount_buy = $3, amount_sell = $4, rate = $5,
		actual_amount_buy = $6, actual_amount_sell = $7, actual_rate = $8,
		status = $9, remarks = $10,
		profit_amount = $11, profit_currency = $12, profit_account_id = $13,
		service_charge_amount = $14, service_charge_currency = $15, service_charge_account_id = $16
		WHERE id = $1`

	tag, err := q.Exec(ctx, query, o.ID,
		optText(o.HandlerID, int64Param),
		o.AmountBuy.String(), o.AmountSell.String(), o.Rate.String(),
		optText(o.ActualAmountBuy, decParam), optText(o.ActualAmountSell, decParam), optText(o.ActualRate, decParam),
		string(o.Status), optText(o.Remarks, strParam),
		optText(o.ProfitAmount, decParam), optText(o.ProfitCurrency, strParam), optText(o.ProfitAccountID, int64Param),
		optText(o.ServiceChargeAmount, decParam), optText(o.ServiceChargeCurrency, strParam), optText(o.ServiceChargeAccountID, int64Param))
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) ListCurrencies(ctx context.Context) (map[string]entity.Currency, error) {
	const query = `SELECT code, base_rate_buy::text, base_rate_sell::text,
		conversion_rate_buy::text, conversion_rate_sell::text, active FROM currencies`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "select currencies")
	}
	defer rows.Close()

	currencies := make(map[string]entity.Currency)
	for rows.Next() {
		var (
			c                                    entity.Currency
			baseBuy, baseSell, convBuy, convSell *string
		)
		if err := rows.Scan(&c.Code, &baseBuy, &baseSell, &convBuy, &convSell, &c.Active); err != nil {
			return nil, errors.Wrap(err, "scan currency")
		}
		c.BaseRateBuy = scanOptDecimal(baseBuy)
		c.BaseRateSell = scanOptDecimal(baseSell)
		c.ConversionRateBuy = scanOptDecimal(convBuy)
		c.ConversionRateSell = scanOptDecimal(convSell)
		currencies[c.Code] = c
	}
	return currencies, rows.Err()
}

func (s *PostgresStore) UpsertCurrency(ctx context.Context, c entity.Currency) error {
	const query = `INSERT INTO currencies (code, base_rate_buy, base_rate_sell, conversion_rate_buy, conversion_rate_sell, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (code) DO UPDATE SET
			base_rate_buy = EXCLUDED.base_rate_buy,
			base_rate_sell = EXCLUDED.base_rate_sell,
			conversion_rate_buy = EXCLUDED.conversion_rate_buy,
			conversion_rate_sell = EXCLUDED.conversion_rate_sell,
			active = EXCLUDED.active`

	_, err := s.db.Exec(ctx, query, c.Code,
		optText(c.BaseRateBuy, decParam), optText(c.BaseRateSell, decParam),
		optText(c.ConversionRateBuy, decParam), optText(c.ConversionRateSell, decParam), c.Active)
	return errors.Wrap(err, "upsert currency")
}

// Preference access backs the injected key-value capability used for
// per-user defaults (default handler, favourite customers).

func (s *PostgresStore) GetPreference(ctx context.Context, userID int64, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM preferences WHERE user_id = $1 AND key = $2`, userID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select preference")
	}
	return value, true, nil
}

func (s *PostgresStore) SetPreference(ctx context.Context, userID int64, key, value string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO preferences (user_id, key, value) VALUES ($1,$2,$3)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value`,
		userID, key, value)
	return errors.Wrap(err, "set preference")
}

func (s *PostgresStore) ClearPreference(ctx context.Context, userID int64, key string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM preferences WHERE user_id = $1 AND key = $2`, userID, key)
	return errors.Wrap(err, "clear preference")
}
