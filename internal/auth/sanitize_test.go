package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sanitizedEcho(t *testing.T) http.Handler {
	t.Helper()
	return SanitizeInput(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
}

func TestSanitizeRejectsKeywordInBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"top-level string", `{"name":"1; DROP TABLE users"}`},
		{"nested object", `{"patient":{"notes":"UNION ALL"}}`},
		{"array element", `{"tags":["ok","select * from users"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			sanitizedEcho(t).ServeHTTP(rec, r)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if resp["code"] != CodeInvalidInput {
				t.Errorf("code = %q, want %q", resp["code"], CodeInvalidInput)
			}
		})
	}
}

func TestSanitizePassesCleanRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"ordinary fields", `{"email":"jane@clinic.test","age":41}`},
		{"keyword inside a word", `{"note":"selections and creations"}`},
		{"non-string values", `{"active":true,"count":3,"note":null}`},
		{"malformed json", `{"name":`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			sanitizedEcho(t).ServeHTTP(rec, r)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := rec.Body.String(); got != tt.body {
				t.Errorf("downstream body = %q, want original %q", got, tt.body)
			}
		})
	}
}

type flakyReader struct {
	data []byte
	err  error
}

func (f *flakyReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestSanitizeRestoresBodyOnReadError(t *testing.T) {
	partial := `{"name":"Ja`
	r := httptest.NewRequest(http.MethodPost, "/api/patients", nil)
	r.Header.Set("Content-Type", "application/json")
	r.Body = io.NopCloser(&flakyReader{data: []byte(partial), err: io.ErrUnexpectedEOF})

	rec := httptest.NewRecorder()
	sanitizedEcho(t).ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != partial {
		t.Errorf("downstream body = %q, want the bytes read before the error %q", got, partial)
	}
}

func TestSanitizeChecksQueryParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/doctors?name=DROP+TABLE", nil)
	rec := httptest.NewRecorder()
	sanitizedEcho(t).ServeHTTP(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/doctors?name=jane", nil)
	rec = httptest.NewRecorder()
	sanitizedEcho(t).ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
