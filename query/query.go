// Package query is the read-only query surface over the projector's read
// model (spec §5, "Query surface"): point lookup, a filtered/sorted list
// restricted to a column whitelist, an overdrawn-accounts view, and a
// per-status/per-currency summary. Grounded on the teacher's
// example/bank/projection/account_reports.go and cmd/api/report.go
// (plain parameterized database/sql queries scanned into report structs),
// generalized from goengine's single aggregate report table to this
// core's account_balance read model.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
)

// AccountView is one row of the account_balance read model as returned to
// callers of this package.
type AccountView struct {
	AccountID           uuid.UUID
	HolderName          string
	Status              string
	BalanceAmount       decimal.Decimal
	BalanceCurrency     string
	OverdraftLimit      decimal.Decimal
	AvailableToWithdraw decimal.Decimal
	Version             int
}

// OverdrawnAccountView is an AccountView ranked by overdraft usage.
type OverdrawnAccountView struct {
	AccountView
	// OverdraftUsagePercent is |balance| / overdraftLimit * 100, or 100 when
	// overdraftLimit is zero (spec §5).
	OverdraftUsagePercent decimal.Decimal
}

// Summary is the counts-per-status and sums-per-currency aggregate view.
type Summary struct {
	CountsByStatus map[string]int64
	SumsByCurrency map[string]decimal.Decimal
}

// sortWhitelist is the exhaustive set of columns ListFilter.SortBy may
// name (spec §5): "sort columns are chosen from the whitelist only".
var sortWhitelist = map[string]string{
	"updated_at":            "updated_at",
	"balance_amount":        "balance_amount",
	"available_to_withdraw": "available_to_withdraw",
	"overdraft_limit":       "overdraft_limit",
	"holder_name":           "holder_name",
	"status":                "status",
}

// Queries is the read-only query surface, backed by the read model's
// database handle.
type Queries struct {
	db *sql.DB
}

// New returns a Queries backed by db (the read model database).
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

const selectAccountColumns = `account_id, holder_name, status, balance_amount, balance_currency, overdraft_limit, available_to_withdraw, version`

// Get performs a point lookup by account id. Returns nil, nil if no row
// exists (e.g. the account was never opened or the projector has not
// caught up yet).
func (q *Queries) Get(ctx context.Context, id uuid.UUID) (*AccountView, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+selectAccountColumns+` FROM account_balance WHERE account_id = $1`, id)

	view, err := scanAccountView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &eventstore.StorageError{Op: "query: get account", Err: err}
	}

	return view, nil
}

// ListFilter restricts List to a status (optional, empty means any) and a
// sort column/direction drawn from the whitelist.
type ListFilter struct {
	Status    string
	SortBy    string
	Ascending bool
	Limit     int
	Offset    int
}

// List returns accounts matching filter, sorted by a whitelisted column.
// SortBy defaults to "updated_at" if empty or not in the whitelist —
// never interpolated unchecked, per spec §5's injection-safety requirement.
func (q *Queries) List(ctx context.Context, filter ListFilter) ([]AccountView, error) {
	column, ok := sortWhitelist[filter.SortBy]
	if !ok {
		column = sortWhitelist["updated_at"]
	}

	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM account_balance WHERE ($1 = '' OR status = $1) ORDER BY %s %s LIMIT $2 OFFSET $3`, selectAccountColumns, column, direction)

	rows, err := q.db.QueryContext(ctx, query, filter.Status, limit, filter.Offset)
	if err != nil {
		return nil, &eventstore.StorageError{Op: "query: list accounts", Err: err}
	}
	defer rows.Close()

	var views []AccountView
	for rows.Next() {
		view, err := scanAccountView(rows)
		if err != nil {
			return nil, &eventstore.StorageError{Op: "query: scan account row", Err: err}
		}
		views = append(views, *view)
	}
	if err := rows.Err(); err != nil {
		return nil, &eventstore.StorageError{Op: "query: iterate account rows", Err: err}
	}

	return views, nil
}

// Overdrawn returns every account with a negative balance, ranked
// descending by overdraft usage percent (spec §5).
func (q *Queries) Overdrawn(ctx context.Context) ([]OverdrawnAccountView, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+selectAccountColumns+` FROM account_balance WHERE balance_amount < 0`)
	if err != nil {
		return nil, &eventstore.StorageError{Op: "query: overdrawn accounts", Err: err}
	}
	defer rows.Close()

	var views []OverdrawnAccountView
	for rows.Next() {
		view, err := scanAccountView(rows)
		if err != nil {
			return nil, &eventstore.StorageError{Op: "query: scan overdrawn row", Err: err}
		}
		views = append(views, OverdrawnAccountView{
			AccountView:           *view,
			OverdraftUsagePercent: overdraftUsagePercent(view.BalanceAmount, view.OverdraftLimit),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &eventstore.StorageError{Op: "query: iterate overdrawn rows", Err: err}
	}

	sortOverdrawnDescending(views)

	return views, nil
}

// overdraftUsagePercent is |balance| / overdraftLimit * 100, or 100 when
// overdraftLimit is zero (spec §5, verbatim).
func overdraftUsagePercent(balance, overdraftLimit decimal.Decimal) decimal.Decimal {
	if overdraftLimit.IsZero() {
		return decimal.NewFromInt(100)
	}

	return balance.Abs().Div(overdraftLimit).Mul(decimal.NewFromInt(100))
}

func sortOverdrawnDescending(views []OverdrawnAccountView) {
	for i := 1; i < len(views); i++ {
		for j := i; j > 0 && views[j].OverdraftUsagePercent.GreaterThan(views[j-1].OverdraftUsagePercent); j-- {
			views[j], views[j-1] = views[j-1], views[j]
		}
	}
}

// Summarize returns counts per status and balance sums per currency across
// every projected account.
func (q *Queries) Summarize(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		CountsByStatus: map[string]int64{},
		SumsByCurrency: map[string]decimal.Decimal{},
	}

	statusRows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM account_balance GROUP BY status`)
	if err != nil {
		return nil, &eventstore.StorageError{Op: "query: summarize statuses", Err: err}
	}
	defer statusRows.Close()

	for statusRows.Next() {
		var (
			status string
			count  int64
		)
		if err := statusRows.Scan(&status, &count); err != nil {
			return nil, &eventstore.StorageError{Op: "query: scan status count", Err: err}
		}
		summary.CountsByStatus[status] = count
	}
	if err := statusRows.Err(); err != nil {
		return nil, &eventstore.StorageError{Op: "query: iterate status counts", Err: err}
	}

	currencyRows, err := q.db.QueryContext(ctx, `SELECT balance_currency, SUM(balance_amount) FROM account_balance GROUP BY balance_currency`)
	if err != nil {
		return nil, &eventstore.StorageError{Op: "query: summarize currencies", Err: err}
	}
	defer currencyRows.Close()

	for currencyRows.Next() {
		var (
			currency string
			sum      decimal.Decimal
		)
		if err := currencyRows.Scan(&currency, &sum); err != nil {
			return nil, &eventstore.StorageError{Op: "query: scan currency sum", Err: err}
		}
		summary.SumsByCurrency[currency] = sum
	}
	if err := currencyRows.Err(); err != nil {
		return nil, &eventstore.StorageError{Op: "query: iterate currency sums", Err: err}
	}

	return summary, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountView(row scanner) (*AccountView, error) {
	var view AccountView
	if err := row.Scan(
		&view.AccountID,
		&view.HolderName,
		&view.Status,
		&view.BalanceAmount,
		&view.BalanceCurrency,
		&view.OverdraftLimit,
		&view.AvailableToWithdraw,
		&view.Version,
	); err != nil {
		return nil, err
	}

	return &view, nil
}
