package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
)

// FakeAirtable serves a single table over the Airtable list records API,
// paging with the offset parameter like the real service.
type FakeAirtable struct {
	Server   *httptest.Server
	PageSize int

	mu       sync.Mutex
	records  []catalog.Record
	requests int
	status   int
}

// NewFakeAirtable starts a fake Airtable API. The server is closed when the
// test finishes.
func NewFakeAirtable(t *testing.T, records ...catalog.Record) *FakeAirtable {
	t.Helper()

	f := &FakeAirtable{PageSize: 100, records: records}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the API base URL to configure on the client
func (f *FakeAirtable) URL() string {
	return f.Server.URL
}

// SetRecords replaces the table contents
func (f *FakeAirtable) SetRecords(records ...catalog.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

// FailWith makes every following request answer with status
func (f *FakeAirtable) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// Requests returns the number of requests served
func (f *FakeAirtable) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *FakeAirtable) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	status := f.status
	records := append([]catalog.Record(nil), f.records...)
	pageSize := f.PageSize
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"type":"SERVER_ERROR","message":"fake failure"}}`))
		return
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"AUTHENTICATION_REQUIRED"}}`))
		return
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	if start > end {
		start = end
	}

	page := map[string]any{"records": records[start:end]}
	if end < len(records) {
		page["offset"] = strconv.Itoa(end)
	}
	_ = json.NewEncoder(w).Encode(page)
}

// AirtableProduct builds a products table record with the fields the sync
// reads.
func AirtableProduct(id, handle, title string, price float64) catalog.Record {
	return catalog.Record{
		ID: id,
		Fields: map[string]any{
			"Handle":        handle,
			"Title":         title,
			"Variant Price": price,
			"Status":        "Active",
			"Published":     true,
		},
	}
}

// ShopifyProductPayload builds a products/create or products/update webhook
// body.
func ShopifyProductPayload(id int64, handle, title, price string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":           id,
		"handle":       handle,
		"title":        title,
		"status":       "active",
		"body_html":    "<p>" + title + "</p>",
		"variants": []map[string]any{
			{"id": id*10 + 1, "price": price, "sku": handle + "-1"},
		},
	})
	return body
}
