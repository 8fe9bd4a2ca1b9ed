package sheets

import (
	"context"
	"fmt"
	"net/http"

	"taize-events/internal/config"
)

// Cell is one spreadsheet value as decoded from the wire: nil, string,
// float64, bool or time.Time.
type Cell = any

// Row holds the cells of one data row in column order. A nil Row marks a
// row the source reported as empty; it still occupies a row number.
type Row []Cell

// RowSource returns the data rows of the event sheet, header excluded.
type RowSource interface {
	FetchRows(ctx context.Context) ([]Row, error)
}

// RemoteFetchError is a batch level failure talking to the spreadsheet.
type RemoteFetchError struct {
	Source string
	Err    error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("sheets fetch %s: %v", e.Source, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// NewSource picks the row source for cfg.Mode. httpClient is used by the
// gviz source only and may be nil.
func NewSource(ctx context.Context, cfg config.SheetsConfig, httpClient *http.Client) (RowSource, error) {
	sheet := cfg.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}
	switch cfg.Mode {
	case "", "gviz":
		return NewGvizSource(cfg.SpreadsheetID, sheet, httpClient), nil
	case "api":
		return NewAPISource(ctx, cfg.SpreadsheetID, sheet, cfg.CredentialsFile, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown sheets mode: %s", cfg.Mode)
	}
}
