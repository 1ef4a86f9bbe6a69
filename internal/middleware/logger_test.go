package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		path      string
		status    int
		wantLevel string
	}{
		{"/v1/credits", http.StatusOK, "info"},
		{"/v1/healthz", http.StatusOK, "debug"},
		{"/static/images/a.png", http.StatusOK, "debug"},
		{"/v1/images/generate", http.StatusBadGateway, "info"},
		{"/v1/images/generate", http.StatusInternalServerError, "error"},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		l := zerolog.New(&buf).Level(zerolog.DebugLevel)
		h := Logger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("hello"))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("%s: decode log line %q: %v", tc.path, buf.String(), err)
		}
		if line["level"] != tc.wantLevel {
			t.Fatalf("%s %d: level = %v, want %s", tc.path, tc.status, line["level"], tc.wantLevel)
		}
		if line["bytes"] != float64(5) {
			t.Fatalf("%s: bytes = %v, want 5", tc.path, line["bytes"])
		}
	}
}
