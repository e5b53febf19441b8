package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gridbase/sheetsync/internal/dialect"
	"github.com/gridbase/sheetsync/internal/sheets"
	"github.com/gridbase/sheetsync/internal/store"
)

// Mode selects the reconciliation strategy for a run.
type Mode string

const (
	// ModeAuto follows the config's incremental flag.
	ModeAuto Mode = ""
	// ModeFull truncates and reinserts the whole dataset.
	ModeFull Mode = "full"
	// ModeIncremental diffs per-row fingerprints.
	ModeIncremental Mode = "incremental"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeFull, ModeIncremental:
		return Mode(s), nil
	default:
		return ModeAuto, fmt.Errorf("invalid sync mode %q", s)
	}
}

// Result reports what one synchronization cycle did.
type Result struct {
	Inserted int    `json:"insertedCount"`
	Updated  int    `json:"updatedCount"`
	Deleted  int    `json:"deletedCount"`
	Total    int    `json:"totalRows"`
	Skipped  bool   `json:"skipped"`
	LogID    string `json:"logId,omitempty"`
}

// Engine executes synchronization cycles against the target store.
type Engine struct {
	db       *sqlx.DB
	dialect  dialect.Dialect
	reader   sheets.RangeReader
	configs  *store.ConfigRepo
	logs     *store.LogRepo
	tracked  *store.TrackedRepo
	pageSize int64
}

func New(db *sqlx.DB, d dialect.Dialect, reader sheets.RangeReader,
	configs *store.ConfigRepo, logs *store.LogRepo, tracked *store.TrackedRepo) *Engine {
	return &Engine{
		db:       db,
		dialect:  d,
		reader:   reader,
		configs:  configs,
		logs:     logs,
		tracked:  tracked,
		pageSize: sheets.DefaultPageSize,
	}
}

// Run executes one synchronization cycle for a named table. A config miss is
// reported before any log entry is opened; every later failure finalizes the
// run's log entry as error.
func (e *Engine) Run(ctx context.Context, table string, mode Mode) (*Result, error) {
	cfg, err := e.configs.GetByTable(ctx, table)
	if err != nil {
		return nil, &StoreWriteError{Err: err}
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, table)
	}

	incremental := cfg.Incremental
	switch mode {
	case ModeFull:
		incremental = false
	case ModeIncremental:
		incremental = true
	}

	logID, err := e.logs.Start(ctx, cfg.TableName, cfg.Folder)
	if err != nil {
		return nil, &StoreWriteError{Err: err}
	}

	started := time.Now()
	slog.Info("sync run", "table", cfg.TableName, "sheet", cfg.SheetName, "incremental", incremental)

	var counts store.RunCounts
	var skipped bool
	if incremental {
		counts, skipped, err = e.runIncremental(ctx, cfg)
	} else {
		counts, skipped, err = e.runFull(ctx, cfg)
	}
	elapsed := time.Since(started)

	if err != nil {
		slog.Error("sync run failed", "table", cfg.TableName, "elapsed", elapsed, "error", err)
		if ferr := e.logs.Finalize(ctx, logID, store.StatusError, counts, err.Error(), elapsed); ferr != nil {
			slog.Error("finalize sync log", "id", logID, "error", ferr)
		}
		return nil, err
	}

	status := store.StatusSuccess
	if skipped {
		status = store.StatusSkipped
	}
	if ferr := e.logs.Finalize(ctx, logID, status, counts, "", elapsed); ferr != nil {
		slog.Error("finalize sync log", "id", logID, "error", ferr)
	}

	slog.Info("sync run done", "table", cfg.TableName, "status", status, "elapsed", elapsed,
		"inserted", counts.Inserted, "updated", counts.Updated, "deleted", counts.Deleted, "total", counts.Total)

	return &Result{
		Inserted: counts.Inserted,
		Updated:  counts.Updated,
		Deleted:  counts.Deleted,
		Total:    counts.Total,
		Skipped:  skipped,
		LogID:    logID,
	}, nil
}

// fetchPages paginates the reader in fixed-size row windows starting at
// startRow until a short page signals the end of data. Each returned row is
// tagged with its absolute 1-indexed sheet row number.
func (e *Engine) fetchPages(ctx context.Context, cfg *store.SyncConfig, startRow int64) ([]numberedRow, error) {
	var out []numberedRow
	window := e.pageSize

	for start := startRow; ; start += window {
		page, err := e.reader.FetchRange(ctx, cfg.SpreadsheetID, cfg.SheetName, start, start+window-1)
		if err != nil {
			return nil, &SourceFetchError{Err: err}
		}
		for i, cells := range page {
			out = append(out, numberedRow{num: start + int64(i), cells: cells})
		}
		if int64(len(page)) < window {
			break
		}
	}
	return out, nil
}

type numberedRow struct {
	num   int64
	cells []string
}

// columnNames derives validated column identifiers from a header row,
// de-duplicating collisions with a numeric suffix.
func columnNames(headers []string) ([]string, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("header row is empty")
	}

	cols := make([]string, 0, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := dialect.NormalizeIdent(h)
		if name == "" {
			name = fmt.Sprintf("col_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		if err := dialect.ValidateIdent(name); err != nil {
			return nil, fmt.Errorf("column from header %q: %w", h, err)
		}
		cols = append(cols, name)
	}
	return cols, nil
}

// syntheticColumns names headerless sheets col_1..col_n.
func syntheticColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("col_%d", i+1)
	}
	return cols
}

// ensureTable creates the target table when absent: all TEXT columns, plus
// the stable row-number key for incremental targets.
func (e *Engine) ensureTable(ctx context.Context, table string, cols []string, withRowNum bool) error {
	if err := dialect.ValidateIdent(table); err != nil {
		return fmt.Errorf("target table: %w", err)
	}

	var defs []string
	if withRowNum {
		defs = append(defs, e.dialect.QuoteIdent(rowNumColumn)+" BIGINT UNIQUE")
	}
	for _, c := range cols {
		defs = append(defs, e.dialect.QuoteIdent(c)+" TEXT")
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		e.dialect.QuoteIdent(table), strings.Join(defs, ", "))
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// rowNumColumn is the stable per-row key on incremental targets, mapping a
// data row back to its sheet row number.
const rowNumColumn = "_row_num"

// countRows returns the current cardinality of the target table.
func (e *Engine) countRows(ctx context.Context, table string) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM " + e.dialect.QuoteIdent(table)
	if err := e.db.GetContext(ctx, &n, q); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return n, nil
}

// insertBatches writes data rows in batches sized so that rows*columns stays
// under the dialect's bound-parameter ceiling. Empty cells become NULL.
// rowNums is non-nil for incremental targets and aligns with rows.
func (e *Engine) insertBatches(ctx context.Context, ext sqlx.ExtContext, table string, cols []string, rows [][]string, rowNums []int64) error {
	if len(rows) == 0 {
		return nil
	}

	allCols := cols
	if rowNums != nil {
		allCols = append([]string{rowNumColumn}, cols...)
	}

	quoted := make([]string, len(allCols))
	for i, c := range allCols {
		quoted[i] = e.dialect.QuoteIdent(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		e.dialect.QuoteIdent(table), strings.Join(quoted, ","))

	batchSize := RowsPerBatch(len(rows), len(allCols), e.dialect.MaxParams())

	for off := 0; off < len(rows); off += batchSize {
		end := off + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[off:end]

		args := make([]any, 0, len(batch)*len(allCols))
		for i, row := range batch {
			if rowNums != nil {
				args = append(args, rowNums[off+i])
			}
			for c := 0; c < len(cols); c++ {
				args = append(args, cellArg(row, c))
			}
		}

		stmt := prefix + dialect.ValuesClause(e.dialect, len(batch), len(allCols))
		if _, err := ext.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert batch into %s (rows %d..%d): %w", table, off, end-1, err)
		}
	}
	return nil
}

// cellArg normalizes a cell for binding: missing or empty cells become NULL.
func cellArg(row []string, i int) any {
	if i >= len(row) || row[i] == "" {
		return nil
	}
	return row[i]
}
