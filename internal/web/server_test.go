package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tabrecon/internal/config"
	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/profile"
)

const (
	customersCSV = "ID,Name\n1,Alice\n2,Bob\n3,Carol\n"
	ordersCSV    = "Customer ID,Amount\n1,10\n3,30\n"
)

func newTestServer(t *testing.T, env map[string]string) *Server {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	if _, ok := env["RATE_LIMIT_ENABLED"]; !ok {
		env["RATE_LIMIT_ENABLED"] = "false"
	}
	cfg, err := config.LoadFrom(func(k string) string { return env[k] })
	require.NoError(t, err)
	return NewServer(core.NewService(core.ServiceOptions{}), cfg)
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func upload(t *testing.T, s *Server, fileName, content string) core.DatasetSummary {
	t.Helper()
	rec := do(s, uploadRequest(t, fileName, content))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var summary core.DatasetSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	return summary
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func mergeRequest(path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestDatasetLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	summary := upload(t, s, "customers.csv", customersCSV)

	assert.Equal(t, "customers.csv", summary.FileName)
	assert.Equal(t, []string{"ID", "Name"}, summary.Header)
	assert.Equal(t, 3, summary.RowCount)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []core.DatasetSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, summary.ID, list[0].ID)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+summary.ID+"/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodDelete, "/api/datasets/"+summary.ID+"/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+summary.ID+"/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DS001", decodeError(t, rec).Code)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, uploadRequest(t, "report.xls", "binary"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "FILE002", decodeError(t, rec).Code)

	rec = do(s, uploadRequest(t, "empty.csv", ""))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "FILE003", decodeError(t, rec).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec = do(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE006", decodeError(t, rec).Code)
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, map[string]string{"UPLOAD_MAX_FILE_SIZE": "64B"})
	rec := do(s, uploadRequest(t, "big.csv", strings.Repeat("a,b\n", 100)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestUpload_HTMXFragment(t *testing.T) {
	s := newTestServer(t, nil)
	req := uploadRequest(t, "customers.csv", customersCSV)
	req.Header.Set("HX-Request", "true")
	rec := do(s, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `class="dataset"`)
	assert.Contains(t, rec.Body.String(), "customers.csv")
}

func TestRecordsAndFilters(t *testing.T) {
	s := newTestServer(t, nil)
	summary := upload(t, s, "customers.csv", customersCSV)
	base := "/api/datasets/" + summary.ID

	rec := do(s, httptest.NewRequest(http.MethodGet, base+"/records?filter[Name]=Bob&filter[Name]=Carol", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page RecordsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, [][]string{{"2", "Bob"}, {"3", "Carol"}}, page.Rows)

	rec = do(s, httptest.NewRequest(http.MethodGet, base+"/records?filter[0]=1&limit=1&offset=0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, [][]string{{"1", "Alice"}}, page.Rows)

	rec = do(s, httptest.NewRequest(http.MethodGet, base+"/records?offset=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Rows)
	assert.Equal(t, 3, page.Total)

	rec = do(s, httptest.NewRequest(http.MethodGet, base+"/records?filter[Missing]=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL001", decodeError(t, rec).Code)
}

func TestDistinctAndBlanks(t *testing.T) {
	s := newTestServer(t, nil)
	summary := upload(t, s, "people.csv", "Name,City\nAlice,Oslo\nBob,\nCarol,Oslo\n")
	base := "/api/datasets/" + summary.ID

	rec := do(s, httptest.NewRequest(http.MethodGet, base+"/distinct/City", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var distinct DistinctResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &distinct))
	assert.Equal(t, 1, distinct.Index)
	assert.Equal(t, []string{"", "Oslo"}, distinct.Values)
	assert.Equal(t, []string{core.BlankLabel, "Oslo"}, distinct.Labels)

	rec = do(s, httptest.NewRequest(http.MethodGet, base+"/records?filter[City]=(Blanks)", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page RecordsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, [][]string{{"Bob", ""}}, page.Rows)

	rec = do(s, httptest.NewRequest(http.MethodGet, base+"/blanks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var blanks []core.BlankCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &blanks))
	assert.Equal(t, []core.BlankCount{{Column: "Name", Blanks: 0}, {Column: "City", Blanks: 1}}, blanks)
}

func TestMerge(t *testing.T) {
	s := newTestServer(t, nil)
	customers := upload(t, s, "customers.csv", customersCSV)
	orders := upload(t, s, "orders.csv", ordersCSV)

	req := mergeRequest("/api/merge", map[string]any{
		"fromId":  customers.ID,
		"toId":    orders.ID,
		"mode":    "vlookup",
		"fromKey": "ID",
		"toKey":   0,
	})
	req.RemoteAddr = "198.51.100.7:4000"
	req.Header.Set("User-Agent", "merge-test")
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MergeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Matched, 2)
	require.Len(t, resp.Unmatched, 1)
	assert.Equal(t, []string{"2", "Bob"}, resp.Unmatched[0])
	require.NotNil(t, resp.Run)
	assert.Equal(t, "ID", resp.Run.FromKey)
	assert.Equal(t, "Customer ID", resp.Run.ToKey)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []core.MergeRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, resp.Run.ID, runs[0].ID)
	assert.Equal(t, "198.51.100.7", runs[0].IPAddress)
	assert.Equal(t, "merge-test", runs[0].UserAgent)
}

func TestMerge_NumericKeyIsIndex(t *testing.T) {
	s := newTestServer(t, nil)
	periods := upload(t, s, "periods.csv", "Region,Q,1\nEast,a,x\nWest,b,y\n")
	lookup := upload(t, s, "lookup.csv", "Q,Value\na,10\n")

	rec := do(s, mergeRequest("/api/merge", map[string]any{
		"fromId":  periods.ID,
		"toId":    lookup.ID,
		"mode":    "vlookup",
		"fromKey": 1,
		"toKey":   0,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MergeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Run)
	assert.Equal(t, "Q", resp.Run.FromKey)
	assert.Equal(t, [][]string{{"East", "a", "x", "a", "10"}}, resp.Matched)
	assert.Equal(t, [][]string{{"West", "b", "y"}}, resp.Unmatched)

	// A string reference still matches the header label first.
	rec = do(s, mergeRequest("/api/merge", map[string]any{
		"fromId":  periods.ID,
		"toId":    lookup.ID,
		"mode":    "vlookup",
		"fromKey": "1",
		"toKey":   0,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1", resp.Run.FromKey)
	assert.Empty(t, resp.Matched)
}

func TestColumnRef_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    columnRef
		wantErr bool
	}{
		{`2`, columnRef{value: "2", index: 2, numeric: true, set: true}, false},
		{`"2"`, columnRef{value: "2", set: true}, false},
		{`"Amount"`, columnRef{value: "Amount", set: true}, false},
		{`"  "`, columnRef{value: "  "}, false},
		{`null`, columnRef{}, false},
		{`1.5`, columnRef{}, true},
		{`[1]`, columnRef{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got columnRef
			err := got.UnmarshalJSON([]byte(tt.in))
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge_XLookupForm(t *testing.T) {
	s := newTestServer(t, nil)
	customers := upload(t, s, "customers.csv", customersCSV)
	orders := upload(t, s, "orders.csv", ordersCSV)

	form := "fromId=" + customers.ID + "&toId=" + orders.ID + "&mode=xlookup&fromKey=0&toKey=Customer+ID&returnCol=Amount"
	req := httptest.NewRequest(http.MethodPost, "/api/merge", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "2 matched")
	assert.Contains(t, rec.Body.String(), "1 unmatched")
}

func TestMergeErrors(t *testing.T) {
	s := newTestServer(t, nil)
	customers := upload(t, s, "customers.csv", customersCSV)
	orders := upload(t, s, "orders.csv", ordersCSV)

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing mode and keys",
			body:     map[string]any{"fromId": customers.ID, "toId": orders.ID},
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL002",
		},
		{
			name:     "unknown column",
			body:     map[string]any{"fromId": customers.ID, "toId": orders.ID, "mode": "vlookup", "fromKey": "Nope", "toKey": 0},
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL001",
		},
		{
			name:     "column out of range",
			body:     map[string]any{"fromId": customers.ID, "toId": orders.ID, "mode": "vlookup", "fromKey": 0, "toKey": 9},
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL001",
		},
		{
			name:     "unknown dataset",
			body:     map[string]any{"fromId": "missing", "toId": orders.ID, "mode": "vlookup", "fromKey": 0, "toKey": 0},
			wantCode: http.StatusNotFound,
			wantErr:  "DS001",
		},
		{
			name:     "malformed column",
			body:     map[string]any{"fromId": customers.ID, "toId": orders.ID, "mode": "vlookup", "fromKey": []int{1}, "toKey": 0},
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, mergeRequest("/api/merge", tt.body))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}
}

func TestMergeExport(t *testing.T) {
	s := newTestServer(t, nil)
	customers := upload(t, s, "customers.csv", customersCSV)
	orders := upload(t, s, "orders.csv", ordersCSV)
	body := map[string]any{
		"fromId":  customers.ID,
		"toId":    orders.ID,
		"mode":    "vlookup",
		"fromKey": 0,
		"toKey":   0,
	}

	rec := do(s, mergeRequest("/api/merge/export?part=unmatched", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename=unmatched.csv`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "\"ID\",\"Name\"\n\"2\",\"Bob\"", rec.Body.String())

	rec = do(s, mergeRequest("/api/merge/export?part=everything", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL003", decodeError(t, rec).Code)

	rec = do(s, mergeRequest("/api/merge/export?format=xml", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EXP003", decodeError(t, rec).Code)
}

func TestExportDataset(t *testing.T) {
	s := newTestServer(t, nil)
	summary := upload(t, s, "customers.csv", customersCSV)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+summary.ID+"/export?format=json&filter[Name]=Alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=customers.json`, rec.Header().Get("Content-Disposition"))

	var records []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Equal(t, []map[string]string{{"ID": "1", "Name": "Alice"}}, records)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+summary.ID+"/export?format=parquet&filename=out", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=out.parquet`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PAR1")))
}

func TestPivotExport(t *testing.T) {
	s := newTestServer(t, nil)
	markup := `<div><table class="pvtTable">
		<tr><th rowspan="2">Region</th><th>Total</th></tr>
		<tr><td>5</td></tr>
	</table></div>`

	req := httptest.NewRequest(http.MethodPost, "/api/export/pivot?filename=regions", strings.NewReader(markup))
	req.Header.Set("Content-Type", "text/html")
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename=regions.csv`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "\"Region\",\"Total\"\n\"\",\"5\"", rec.Body.String())
}

func TestPivotExport_HugeSpans(t *testing.T) {
	markup := `<table class="pvtTable"><tr><td rowspan="65534" colspan="1000">x</td></tr></table>`

	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/export/pivot", strings.NewReader(markup))
	req.Header.Set("Content-Type", "text/html")
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "\n", "rowspan stops at the only rendered row")
	assert.Equal(t, core.MaxColSpan-1, strings.Count(rec.Body.String(), ","))

	s = newTestServer(t, map[string]string{"UPLOAD_PIVOT_MAX_CELLS": "500"})
	req = httptest.NewRequest(http.MethodPost, "/api/export/pivot", strings.NewReader(markup))
	req.Header.Set("Content-Type", "text/html")
	rec = do(s, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EXP004", decodeError(t, rec).Code)
}

func TestPivotExport_NoTable(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/export/pivot", strings.NewReader("<p>nothing here</p>"))
	req.Header.Set("Content-Type", "text/html")
	rec := do(s, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EXP001", decodeError(t, rec).Code)
}

func TestPivotExport_HTMXError(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/export/pivot", strings.NewReader("html=<p>none</p>"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec := do(s, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "EXP001")
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "secret"})

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = do(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadRateLimit(t *testing.T) {
	s := newTestServer(t, map[string]string{"RATE_LIMIT_ENABLED": "true", "RATE_LIMIT_UPLOAD": "1"})

	upload(t, s, "customers.csv", customersCSV)
	rec := do(s, uploadRequest(t, "orders.csv", ordersCSV))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrDatasetNotFound, http.StatusNotFound},
		{core.ErrTooManyLoads, http.StatusServiceUnavailable},
		{&core.SpanOverlapError{Row: 1}, http.StatusUnprocessableEntity},
		{&core.GridTooLargeError{Cells: 2, Limit: 1}, http.StatusUnprocessableEntity},
		{core.ValidationErrors{{Field: "mode"}}, http.StatusBadRequest},
		{errNoFile, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestProfile(t *testing.T) {
	s := newTestServer(t, nil)
	summary := upload(t, s, "orders.csv", ordersCSV)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+summary.ID+"/profile", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var profiles []profile.ColumnProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profiles))
	require.Len(t, profiles, 2)
	require.NotNil(t, profiles[1].Numeric)
	assert.InDelta(t, 40, profiles[1].Numeric.Sum, 1e-9)
}
