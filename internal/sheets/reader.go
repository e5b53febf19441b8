package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// DefaultPageSize is the row-window size used when paginating a sheet.
// Ranges may extend far past the end of data; the API returns fewer rows,
// which signals exhaustion.
const DefaultPageSize = 20000

// lastColumn bounds fetched ranges. Sheets are rectangular in practice and
// ZZ (702 columns) is far beyond anything a target table can carry.
const lastColumn = "ZZ"

// RangeReader fetches rectangular windows of cell values from a spreadsheet.
type RangeReader interface {
	// FetchRange returns the rows in [startRow, endRow], 1-indexed inclusive.
	// Trailing empty rows are not returned.
	FetchRange(ctx context.Context, spreadsheetID, sheetName string, startRow, endRow int64) ([][]string, error)
}

// Reader is a RangeReader backed by the Google Sheets API, authenticated
// with a service-account credential.
type Reader struct {
	svc    *gsheets.Service
	titles *lru.Cache[string, []string]
}

// NewReader authenticates against the Sheets API. An empty credentialsFile
// falls back to application default credentials.
func NewReader(ctx context.Context, credentialsFile string) (*Reader, error) {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsReadonlyScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	titles, err := lru.New[string, []string](64)
	if err != nil {
		return nil, err
	}

	return &Reader{svc: svc, titles: titles}, nil
}

func (r *Reader) FetchRange(ctx context.Context, spreadsheetID, sheetName string, startRow, endRow int64) ([][]string, error) {
	if startRow < 1 || endRow < startRow {
		return nil, fmt.Errorf("invalid row window %d..%d", startRow, endRow)
	}

	a1 := fmt.Sprintf("%s!A%d:%s%d", quoteSheetName(sheetName), startRow, lastColumn, endRow)
	resp, err := r.svc.Spreadsheets.Values.Get(spreadsheetID, a1).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch range %s: %w", a1, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SheetTitles returns the sheet tab names of a spreadsheet, memoized per
// spreadsheet id to avoid a metadata round trip on every run.
func (r *Reader) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	if titles, ok := r.titles.Get(spreadsheetID); ok {
		return titles, nil
	}

	meta, err := r.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch spreadsheet metadata: %w", err)
	}

	titles := make([]string, 0, len(meta.Sheets))
	for _, s := range meta.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	r.titles.Add(spreadsheetID, titles)
	return titles, nil
}

// HasSheet reports whether the spreadsheet contains a tab with the given name.
func (r *Reader) HasSheet(ctx context.Context, spreadsheetID, sheetName string) (bool, error) {
	titles, err := r.SheetTitles(ctx, spreadsheetID)
	if err != nil {
		return false, err
	}
	for _, t := range titles {
		if t == sheetName {
			return true, nil
		}
	}
	return false, nil
}

// quoteSheetName wraps a tab name in single quotes for A1 notation.
// Embedded quotes are doubled per the A1 escaping rules.
func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// cellString renders an API cell value the way the sheet displays it.
func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
