package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"consultoria/internal/core"
	"consultoria/internal/records"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the snapshot collection in SQLite. Save rewrites
// the table inside one transaction, matching the whole-file semantics of the
// JSON persister.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements records.Persister
func (r *SQLiteRepository) Load(ctx context.Context) ([]records.Snapshot, error) {
	rows, err := r.queries.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	snaps := make([]records.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := rowToSnapshot(row)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", row.ID, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Save implements records.Persister
func (r *SQLiteRepository) Save(ctx context.Context, snaps []records.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteAllSnapshots(ctx); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	for i, snap := range snaps {
		if err := q.InsertSnapshot(ctx, snapshotToRow(i, snap)); err != nil {
			return fmt.Errorf("insert snapshot %d: %w", snap.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshots: %w", err)
	}
	return nil
}

func snapshotToRow(pos int, s records.Snapshot) SnapshotRow {
	row := SnapshotRow{
		ID:           s.ID,
		Position:     int64(pos),
		Client:       s.Client,
		Occupation:   s.Occupation,
		Phone:        s.Phone,
		Email:        s.Email,
		Age:          int64(s.Age),
		Sex:          string(s.Sex),
		SavedOn:      s.Date.String(),
		PeriodLabel:  s.PeriodLabel,
		Month:        s.Month,
		Year:         int64(s.Year),
		TotalIncome:  s.TotalIncome.String(),
		TotalExpense: s.TotalExpense.String(),
		Balance:      s.Balance.String(),
		Document:     s.Document,
	}
	if s.ProjectedSavings.Valid {
		row.ProjectedSavings = sql.NullString{String: s.ProjectedSavings.Decimal.String(), Valid: true}
	}
	return row
}

func rowToSnapshot(row SnapshotRow) (records.Snapshot, error) {
	income, err := decimal.NewFromString(row.TotalIncome)
	if err != nil {
		return records.Snapshot{}, fmt.Errorf("total_income: %w", err)
	}
	expense, err := decimal.NewFromString(row.TotalExpense)
	if err != nil {
		return records.Snapshot{}, fmt.Errorf("total_expense: %w", err)
	}
	balance, err := decimal.NewFromString(row.Balance)
	if err != nil {
		return records.Snapshot{}, fmt.Errorf("balance: %w", err)
	}

	var date core.Date
	if row.SavedOn != "" {
		if err := date.UnmarshalJSON([]byte(`"` + row.SavedOn + `"`)); err != nil {
			return records.Snapshot{}, fmt.Errorf("saved_on: %w", err)
		}
	}

	snap := records.Snapshot{
		ID:           row.ID,
		Client:       row.Client,
		Occupation:   row.Occupation,
		Phone:        row.Phone,
		Email:        row.Email,
		Age:          int(row.Age),
		Sex:          core.ParseSex(row.Sex),
		Date:         date,
		PeriodLabel:  row.PeriodLabel,
		Month:        row.Month,
		Year:         int(row.Year),
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      balance,
		Document:     row.Document,
	}
	if row.ProjectedSavings.Valid {
		v, err := decimal.NewFromString(row.ProjectedSavings.String)
		if err != nil {
			return records.Snapshot{}, fmt.Errorf("projected_savings: %w", err)
		}
		snap.ProjectedSavings = decimal.NewNullDecimal(v)
	}
	return snap, nil
}
