package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"taize-events/internal/config"
)

const gvizPrefix = "/*O_o*/\ngoogle.visualization.Query.setResponse("

func wrap(payload string) string {
	return gvizPrefix + payload + ");"
}

func TestUnwrapGvizStripsFixedWrapper(t *testing.T) {
	if len(gvizPrefix) != GvizPrefixLen {
		t.Fatalf("fixture prefix is %d bytes, want %d", len(gvizPrefix), GvizPrefixLen)
	}
	payload := `{"version":"0.6","status":"ok","table":{"rows":[]}}`

	got, err := UnwrapGviz([]byte(wrap(payload)))
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("got=%q want=%q", got, payload)
	}
	if !json.Valid(got) {
		t.Fatal("unwrapped payload is not valid JSON")
	}
}

func TestUnwrapGvizShortBody(t *testing.T) {
	if _, err := UnwrapGviz([]byte("too short")); err == nil {
		t.Fatal("expected error for short body")
	}
}

func TestGvizURL(t *testing.T) {
	got := GvizURL("abc123", "Події")
	want := "https://docs.google.com/spreadsheets/d/abc123/gviz/tq?tqx=out:json&sheet=%D0%9F%D0%BE%D0%B4%D1%96%D1%97"
	if got != want {
		t.Fatalf("url=%s", got)
	}
}

func TestGvizSourceFetchRows(t *testing.T) {
	payload := `{"table":{"rows":[
		{"c":[{"v":1.0},{"v":"Молитва"},{"v":"Date(2025,4,10,19,0,0)","f":"10.05.2025 19:00"},null,{"v":49.5}]},
		{"c":null},
		{"c":[null,{"v":"Друга"}]}
	]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(wrap(payload)))
	}))
	defer srv.Close()

	src := &GvizSource{URL: srv.URL, Client: srv.Client()}
	rows, err := src.FetchRows(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d want=3", len(rows))
	}
	if rows[1] != nil {
		t.Fatalf("row with null cells should be nil, got %v", rows[1])
	}
	if rows[0][1] != "Молитва" || rows[0][3] != nil || rows[0][4] != 49.5 {
		t.Fatalf("row0=%v", rows[0])
	}
}

func TestGvizSourceMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(wrap(`{"table": {"rows": [`)))
	}))
	defer srv.Close()

	imp := NewImporter(&GvizSource{URL: srv.URL, Client: srv.Client()}, Options{Enabled: true})

	if got := imp.LoadEvents(context.Background()); len(got) != 0 {
		t.Fatalf("events=%v want empty", got)
	}
	_, err := imp.Import(context.Background())
	var rerr *RemoteFetchError
	if !errors.As(err, &rerr) {
		t.Fatalf("err=%v want *RemoteFetchError", err)
	}
}

func TestGvizSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no access", http.StatusForbidden)
	}))
	defer srv.Close()

	src := &GvizSource{URL: srv.URL, Client: srv.Client()}
	if _, err := src.FetchRows(context.Background()); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestNewSourceHasNoFetchTimeout(t *testing.T) {
	src, err := NewSource(context.Background(), config.SheetsConfig{SpreadsheetID: "sheet-id"}, nil)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	g, ok := src.(*GvizSource)
	if !ok {
		t.Fatalf("source=%T want=*GvizSource", src)
	}
	if g.Client.Timeout != 0 {
		t.Fatalf("timeout=%v want=0", g.Client.Timeout)
	}
}
