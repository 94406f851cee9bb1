package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// Coarse defense-in-depth screen; parameterized queries at the data layer
// remain the real protection.
var sqlKeywordPattern = regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION|SCRIPT)\b`)

const maxSanitizedBodyBytes = 1 << 20

// SanitizeInput rejects a request wholesale when any string value in its
// query parameters, path, or JSON body matches the SQL-keyword denylist.
// The response never says which field or pattern matched. Non-string,
// null, and absent values pass trivially.
func SanitizeInput(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestClean(r) {
			writeCode(w, http.StatusBadRequest, CodeInvalidInput, "Invalid input detected.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestClean(r *http.Request) bool {
	if sqlKeywordPattern.MatchString(r.URL.Path) {
		return false
	}

	for _, values := range r.URL.Query() {
		for _, value := range values {
			if sqlKeywordPattern.MatchString(value) {
				return false
			}
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return true
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSanitizedBodyBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		// Whatever was read is restored; the handler's decode reports
		// the truncation.
		return true
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		// Malformed JSON is the handler's problem, not the sanitizer's.
		return true
	}

	return valueClean(payload)
}

func valueClean(value any) bool {
	switch v := value.(type) {
	case string:
		return !sqlKeywordPattern.MatchString(v)
	case map[string]any:
		for _, item := range v {
			if !valueClean(item) {
				return false
			}
		}
	case []any:
		for _, item := range v {
			if !valueClean(item) {
				return false
			}
		}
	}
	return true
}
