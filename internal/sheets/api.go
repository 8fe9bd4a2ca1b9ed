package sheets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// APISource reads the sheet through the Sheets API with a service account
// or an API key.
type APISource struct {
	srv           *sheetsv4.Service
	spreadsheetID string
	sheet         string
}

func NewAPISource(ctx context.Context, spreadsheetID, sheet, credentialsFile, apiKey string) (*APISource, error) {
	opts := []option.ClientOption{option.WithScopes(sheetsv4.SpreadsheetsReadonlyScope)}
	switch {
	case credentialsFile != "":
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account json: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	case apiKey != "":
		opts = append(opts, option.WithAPIKey(apiKey))
	default:
		return nil, fmt.Errorf("sheets api: no credentials")
	}
	srv, err := sheetsv4.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &APISource{srv: srv, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

// readRange covers the twelve event columns below the header row.
func (c *APISource) readRange() string {
	return "'" + strings.ReplaceAll(c.sheet, "'", "''") + "'!A2:L"
}

func (c *APISource) FetchRows(ctx context.Context) ([]Row, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, c.readRange()).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, &RemoteFetchError{Source: "api", Err: err}
	}
	rows := make([]Row, 0, len(resp.Values))
	for _, values := range resp.Values {
		rows = append(rows, Row(values))
	}
	return rows, nil
}
