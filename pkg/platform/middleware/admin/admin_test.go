package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		expected string
		sent     string
		want     int
	}{
		{name: "disabled when no token is configured", expected: "", sent: "", want: http.StatusNoContent},
		{name: "matching token passes", expected: "s3cret", sent: "s3cret", want: http.StatusNoContent},
		{name: "missing token is rejected", expected: "s3cret", sent: "", want: http.StatusUnauthorized},
		{name: "wrong token is rejected", expected: "s3cret", sent: "guess", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/admin/sale/phase", nil)
			if tt.sent != "" {
				req.Header.Set(HeaderAdminToken, tt.sent)
			}
			w := httptest.NewRecorder()
			RequireAdminToken(tt.expected, logger)(ok).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
