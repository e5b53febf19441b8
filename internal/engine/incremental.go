package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gridbase/sheetsync/internal/store"
)

// runIncremental reconciles the target table against per-row fingerprints:
// new rows are inserted, changed rows updated in place keyed by their sheet
// row number, vanished rows deleted. Fingerprint writes ride in the same
// transaction as their data rows, batch by batch; there is no single
// encompassing transaction, so a crash mid-cycle leaves a window that the
// next successful cycle closes.
func (e *Engine) runIncremental(ctx context.Context, cfg *store.SyncConfig) (store.RunCounts, bool, error) {
	var counts store.RunCounts

	var cols []string
	dataStart := cfg.StartRow
	if cfg.HasHeader {
		header, err := e.reader.FetchRange(ctx, cfg.SpreadsheetID, cfg.SheetName, cfg.StartRow, cfg.StartRow)
		if err != nil {
			return counts, false, &SourceFetchError{Err: err}
		}
		if len(header) == 0 {
			return counts, false, fmt.Errorf("%w: %s", ErrNoData, cfg.TableName)
		}
		cols, err = columnNames(header[0])
		if err != nil {
			return counts, false, err
		}
		dataStart = cfg.StartRow + 1
	}

	rows, err := e.fetchPages(ctx, cfg, dataStart)
	if err != nil {
		return counts, false, err
	}
	if len(rows) == 0 {
		return counts, false, fmt.Errorf("%w: %s", ErrNoData, cfg.TableName)
	}
	if cols == nil {
		cols = syntheticColumns(widestRow(rows))
	}
	counts.Total = len(rows)

	// checksum gate before any diffing work
	hashes := make([]string, len(rows))
	for i, r := range rows {
		hashes[i] = RowHash(r.cells)
	}
	checksum := DatasetChecksum(hashes)
	if cfg.LastChecksum != "" && checksum == cfg.LastChecksum {
		slog.Info("sync unchanged, skipping", "table", cfg.TableName, "rows", len(rows))
		if err := e.configs.MarkSkipped(ctx, cfg.TableName, time.Now().UTC()); err != nil {
			return counts, false, &StoreWriteError{Err: err}
		}
		return counts, true, nil
	}

	tracked, err := e.tracked.MapForTable(ctx, cfg.TableName)
	if err != nil {
		return counts, false, &StoreWriteError{Err: err}
	}

	var newRows, changedRows []numberedRow
	var newHashes, changedHashes []string
	seen := make(map[int64]struct{}, len(rows))
	for i, r := range rows {
		seen[r.num] = struct{}{}
		prev, ok := tracked[r.num]
		switch {
		case !ok:
			newRows = append(newRows, r)
			newHashes = append(newHashes, hashes[i])
		case prev != hashes[i]:
			changedRows = append(changedRows, r)
			changedHashes = append(changedHashes, hashes[i])
		}
	}
	var removed []int64
	for num := range tracked {
		if _, ok := seen[num]; !ok {
			removed = append(removed, num)
		}
	}

	if err := e.ensureTable(ctx, cfg.TableName, cols, true); err != nil {
		return counts, false, &StoreWriteError{Err: err}
	}

	if err := e.applyInserts(ctx, cfg, cols, newRows, newHashes); err != nil {
		return counts, false, err
	}
	if err := e.applyUpdates(ctx, cfg, cols, changedRows, changedHashes); err != nil {
		return counts, false, err
	}
	if err := e.applyRemovals(ctx, cfg, removed); err != nil {
		return counts, false, err
	}

	counts.Inserted = len(newRows)
	counts.Updated = len(changedRows)
	counts.Deleted = len(removed)

	if err := e.configs.MarkSynced(ctx, cfg.TableName, checksum, time.Now().UTC()); err != nil {
		return counts, false, &StoreWriteError{Err: err}
	}
	return counts, false, nil
}

// applyInserts writes new rows and their fingerprints, one transaction per
// batch.
func (e *Engine) applyInserts(ctx context.Context, cfg *store.SyncConfig, cols []string, rows []numberedRow, hashes []string) error {
	if len(rows) == 0 {
		return nil
	}

	// +1 for the row-number column
	batchSize := RowsPerBatch(len(rows), len(cols)+1, e.dialect.MaxParams())

	for off := 0; off < len(rows); off += batchSize {
		end := off + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[off:end]

		cells := make([][]string, len(batch))
		nums := make([]int64, len(batch))
		entries := make([]store.TrackedRow, len(batch))
		for i, r := range batch {
			cells[i] = r.cells
			nums[i] = r.num
			entries[i] = store.TrackedRow{
				Dataset:   cfg.SpreadsheetID,
				TableName: cfg.TableName,
				RowNum:    r.num,
				RowHash:   hashes[off+i],
			}
		}

		tx, err := e.db.BeginTxx(ctx, nil)
		if err != nil {
			return &StoreWriteError{Err: err}
		}
		if err := e.insertBatches(ctx, tx, cfg.TableName, cols, cells, nums); err != nil {
			tx.Rollback()
			return &StoreWriteError{Err: err}
		}
		if err := e.tracked.UpsertBatch(ctx, tx, entries); err != nil {
			tx.Rollback()
			return &StoreWriteError{Err: err}
		}
		if err := tx.Commit(); err != nil {
			return &StoreWriteError{Err: fmt.Errorf("commit insert batch: %w", err)}
		}
	}
	return nil
}

// applyUpdates rewrites changed rows in place, keyed by the sheet row number,
// and refreshes their fingerprints in the same transaction.
func (e *Engine) applyUpdates(ctx context.Context, cfg *store.SyncConfig, cols []string, rows []numberedRow, hashes []string) error {
	if len(rows) == 0 {
		return nil
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", e.dialect.QuoteIdent(c), e.dialect.Placeholder(i+1))
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		e.dialect.QuoteIdent(cfg.TableName),
		strings.Join(sets, ", "),
		e.dialect.QuoteIdent(rowNumColumn),
		e.dialect.Placeholder(len(cols)+1))

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return &StoreWriteError{Err: err}
	}
	entries := make([]store.TrackedRow, len(rows))
	for i, r := range rows {
		args := make([]any, 0, len(cols)+1)
		for c := 0; c < len(cols); c++ {
			args = append(args, cellArg(r.cells, c))
		}
		args = append(args, r.num)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			tx.Rollback()
			return &StoreWriteError{Err: fmt.Errorf("update row %d in %s: %w", r.num, cfg.TableName, err)}
		}
		entries[i] = store.TrackedRow{
			Dataset:   cfg.SpreadsheetID,
			TableName: cfg.TableName,
			RowNum:    r.num,
			RowHash:   hashes[i],
		}
	}
	if err := e.tracked.UpsertBatch(ctx, tx, entries); err != nil {
		tx.Rollback()
		return &StoreWriteError{Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreWriteError{Err: fmt.Errorf("commit updates: %w", err)}
	}
	return nil
}

// applyRemovals deletes vanished data rows together with their fingerprints.
func (e *Engine) applyRemovals(ctx context.Context, cfg *store.SyncConfig, rowNums []int64) error {
	if len(rowNums) == 0 {
		return nil
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		e.dialect.QuoteIdent(cfg.TableName),
		e.dialect.QuoteIdent(rowNumColumn),
		e.dialect.Placeholder(1))

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return &StoreWriteError{Err: err}
	}
	for _, num := range rowNums {
		if _, err := tx.ExecContext(ctx, stmt, num); err != nil {
			tx.Rollback()
			return &StoreWriteError{Err: fmt.Errorf("delete row %d from %s: %w", num, cfg.TableName, err)}
		}
		if err := e.tracked.DeleteRow(ctx, tx, cfg.TableName, num); err != nil {
			tx.Rollback()
			return &StoreWriteError{Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StoreWriteError{Err: fmt.Errorf("commit removals: %w", err)}
	}
	return nil
}
