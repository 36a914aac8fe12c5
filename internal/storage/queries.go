package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// SnapshotRow mirrors the snapshots table. Decimal columns are TEXT so no
// precision is lost.
type SnapshotRow struct {
	ID               int64
	Position         int64
	Client           string
	Occupation       string
	Phone            string
	Email            string
	Age              int64
	Sex              string
	SavedOn          string
	PeriodLabel      string
	Month            string
	Year             int64
	TotalIncome      string
	TotalExpense     string
	Balance          string
	ProjectedSavings sql.NullString
	Document         []byte
}

const listSnapshots = `-- name: ListSnapshots :many
SELECT id, position, client, occupation, phone, email, age, sex, saved_on,
       period_label, month, year, total_income, total_expense, balance,
       projected_savings, document
FROM snapshots
ORDER BY position, id
`

func (q *Queries) ListSnapshots(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshots)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SnapshotRow
	for rows.Next() {
		var i SnapshotRow
		if err := rows.Scan(
			&i.ID,
			&i.Position,
			&i.Client,
			&i.Occupation,
			&i.Phone,
			&i.Email,
			&i.Age,
			&i.Sex,
			&i.SavedOn,
			&i.PeriodLabel,
			&i.Month,
			&i.Year,
			&i.TotalIncome,
			&i.TotalExpense,
			&i.Balance,
			&i.ProjectedSavings,
			&i.Document,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAllSnapshots = `-- name: DeleteAllSnapshots :exec
DELETE FROM snapshots
`

func (q *Queries) DeleteAllSnapshots(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllSnapshots)
	return err
}

const insertSnapshot = `-- name: InsertSnapshot :exec
INSERT INTO snapshots (
    id, position, client, occupation, phone, email, age, sex, saved_on,
    period_label, month, year, total_income, total_expense, balance,
    projected_savings, document
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertSnapshot(ctx context.Context, arg SnapshotRow) error {
	_, err := q.db.ExecContext(ctx, insertSnapshot,
		arg.ID,
		arg.Position,
		arg.Client,
		arg.Occupation,
		arg.Phone,
		arg.Email,
		arg.Age,
		arg.Sex,
		arg.SavedOn,
		arg.PeriodLabel,
		arg.Month,
		arg.Year,
		arg.TotalIncome,
		arg.TotalExpense,
		arg.Balance,
		arg.ProjectedSavings,
		arg.Document,
	)
	return err
}
