package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neilotoole/slogt"

	"github.com/00vDragos/RealTime-Chat/pkg/config"
)

func serveLimited(t *testing.T, cfg config.ConnectionLimitConfig, count int) (int, []string) {
	t.Helper()
	var cycled []string
	limiter := NewConnectionLimiter(
		slogt.New(t),
		func(string) int { return count },
		func(userID string) { cycled = append(cycled, userID) },
		cfg,
	)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	mux := http.NewServeMux()
	mux.Handle("GET /ws/{"+UserIDPathValue+"}", Chain(ok, RequestMetadataMiddleware(), limiter))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/A", nil))
	return rec.Code, cycled
}

func TestConnectionLimiter(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.ConnectionLimitConfig
		count      int
		wantStatus int
		wantCycled int
	}{
		{"disabled", config.ConnectionLimitConfig{}, 10, http.StatusOK, 0},
		{"under limit", config.ConnectionLimitConfig{MaxPerUser: 2, Mode: "reject"}, 1, http.StatusOK, 0},
		{"reject at limit", config.ConnectionLimitConfig{MaxPerUser: 2, Mode: "reject"}, 2, http.StatusTooManyRequests, 0},
		{"cycle at limit", config.ConnectionLimitConfig{MaxPerUser: 2, Mode: "cycle"}, 2, http.StatusOK, 1},
		{"bad mode", config.ConnectionLimitConfig{MaxPerUser: 1, Mode: "drop"}, 1, http.StatusInternalServerError, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, cycled := serveLimited(t, tt.cfg, tt.count)
			if status != tt.wantStatus {
				t.Errorf("status: got %d, want %d", status, tt.wantStatus)
			}
			if len(cycled) != tt.wantCycled {
				t.Errorf("cycled: got %v, want %d calls", cycled, tt.wantCycled)
			}
		})
	}
}

func TestMetadataFromPath(t *testing.T) {
	var got *RequestMetadata
	h := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = ReqMetadataFrom(r.Context())
	})
	mux := http.NewServeMux()
	mux.Handle("GET /ws/{"+UserIDPathValue+"}", Chain(h, RequestMetadataMiddleware()))

	req := httptest.NewRequest(http.MethodGet, "/ws/alice", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	mux.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("metadata missing from context")
	}
	if got.UserID != "alice" || got.IP != "10.0.0.7" {
		t.Errorf("unexpected metadata: %+v", got)
	}
}
