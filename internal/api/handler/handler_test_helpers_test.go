package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/nimbusdb/controlplane/internal/api/middleware"
	"github.com/nimbusdb/controlplane/internal/model"
)

const testOwnerID = "u42"

// newRequest creates a new HTTP request with an optional JSON body and the
// test owner identity in context.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r.WithContext(mw.WithOwner(r.Context(), testOwnerID))
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r.WithContext(mw.WithOwner(r.Context(), testOwnerID))
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withChiURLParams adds multiple chi URL parameters to the request context.
func withChiURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// projectScanFunc fills the full project column list in scan order.
func projectScanFunc(p model.Project) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = p.ID
		*dest[1].(*string) = p.OwnerID
		*dest[2].(*string) = p.OwnerEmail
		*dest[3].(*string) = p.Title
		*dest[4].(*string) = p.Description
		*dest[5].(*string) = p.DBRole
		*dest[6].(*string) = p.DBName
		*dest[7].(*string) = p.DBHost
		*dest[8].(*int) = p.DBPort
		*dest[9].(*string) = p.EncryptedPassword
		*dest[10].(**string) = p.SchemaName
		*dest[11].(*[]string) = p.InactiveDatabases
		*dest[12].(*bool) = p.ActionInProgress
		*dest[13].(*string) = p.Status
		*dest[14].(**string) = p.StatusMessage
		*dest[15].(*time.Time) = p.CreatedAt
		*dest[16].(*time.Time) = p.UpdatedAt
		return nil
	}
}
