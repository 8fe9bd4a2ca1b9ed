package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// The visualization endpoint wraps its JSON in a JS callback:
// 47 bytes of "/*O_o*/\ngoogle.visualization.Query.setResponse(" and ");".
const (
	GvizPrefixLen = 47
	GvizSuffixLen = 2
)

const DefaultSheetName = "Події"

func GvizURL(spreadsheetID, sheet string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/gviz/tq?tqx=out:json&sheet=%s",
		url.PathEscape(spreadsheetID), url.QueryEscape(sheet))
}

// UnwrapGviz strips the fixed callback wrapper. Bodies too short to carry
// the wrapper are an error rather than an empty payload.
func UnwrapGviz(body []byte) ([]byte, error) {
	if len(body) < GvizPrefixLen+GvizSuffixLen {
		return nil, fmt.Errorf("gviz payload too short: %d bytes", len(body))
	}
	return body[GvizPrefixLen : len(body)-GvizSuffixLen], nil
}

type gvizCell struct {
	V any    `json:"v"`
	F string `json:"f,omitempty"`
}

type gvizPayload struct {
	Status string `json:"status"`
	Table  *struct {
		Rows []struct {
			C []*gvizCell `json:"c"`
		} `json:"rows"`
	} `json:"table"`
}

// DecodeGviz parses an unwrapped payload into rows. A payload without a
// table yields no rows.
func DecodeGviz(payload []byte) ([]Row, error) {
	var p gvizPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode gviz: %w", err)
	}
	if p.Table == nil {
		return []Row{}, nil
	}
	rows := make([]Row, 0, len(p.Table.Rows))
	for _, r := range p.Table.Rows {
		if r.C == nil {
			rows = append(rows, nil)
			continue
		}
		row := make(Row, len(r.C))
		for i, c := range r.C {
			if c != nil {
				row[i] = c.V
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GvizSource reads a publicly shared sheet without credentials.
type GvizSource struct {
	URL    string
	Client *http.Client
}

func NewGvizSource(spreadsheetID, sheet string, client *http.Client) *GvizSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &GvizSource{URL: GvizURL(spreadsheetID, sheet), Client: client}
}

func (g *GvizSource) FetchRows(ctx context.Context) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return nil, &RemoteFetchError{Source: "gviz", Err: err}
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, &RemoteFetchError{Source: "gviz", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteFetchError{Source: "gviz", Err: fmt.Errorf("status %s", resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteFetchError{Source: "gviz", Err: err}
	}
	payload, err := UnwrapGviz(body)
	if err != nil {
		return nil, &RemoteFetchError{Source: "gviz", Err: err}
	}
	rows, err := DecodeGviz(payload)
	if err != nil {
		return nil, &RemoteFetchError{Source: "gviz", Err: err}
	}
	return rows, nil
}
