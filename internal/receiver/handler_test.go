package receiver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kjstillabower/gauge-data-service/internal/publish"
)

func testRouter(t *testing.T) (*testServer, string) {
	t.Helper()
	dir := t.TempDir()
	h := NewHandler(publish.NewFileSink(dir, "gauge-data.txt"), zap.NewNop())
	return &testServer{router: NewRouter(h, zap.NewNop())}, filepath.Join(dir, "gauge-data.txt")
}

type testServer struct{ router http.Handler }

func (m *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	m.router.ServeHTTP(rec, req)
	return rec
}

// TestReceiveDocument_StoresValidDocument verifies a valid POST answers 200
// and the document lands at the store path.
func TestReceiveDocument_StoresValidDocument(t *testing.T) {
	m, path := testRouter(t)

	rec := m.do(http.MethodPost, "/gauge-data", `{"temp":"21.0","hum":"55"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("response missing X-Correlation-ID")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("stored document missing: %v", err)
	}
	if string(got) != `{"temp":"21.0","hum":"55"}` {
		t.Errorf("stored document = %s", got)
	}
}

// TestReceiveDocument_RejectsMalformed verifies malformed bodies answer 400
// and nothing is stored.
func TestReceiveDocument_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"truncated json", `{"temp":`},
		{"json array", `["not","an","object"]`},
		{"plain text", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, path := testRouter(t)
			rec := m.do(http.MethodPost, "/gauge-data", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Error("malformed document was stored")
			}
		})
	}
}

// TestReceiveDocument_MethodNotAllowed verifies non-POST methods answer 405.
func TestReceiveDocument_MethodNotAllowed(t *testing.T) {
	m, _ := testRouter(t)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		if rec := m.do(method, "/gauge-data", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s status = %d, want 405", method, rec.Code)
		}
	}
}

// TestReceiveDocument_StoreFailure verifies a write failure answers 507.
func TestReceiveDocument_StoreFailure(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Using a regular file as the store directory forces MkdirAll to fail.
	h := NewHandler(publish.NewFileSink(blocked, "gauge-data.txt"), zap.NewNop())
	m := &testServer{router: NewRouter(h, zap.NewNop())}

	rec := m.do(http.MethodPost, "/gauge-data", `{"temp":"1.0"}`)
	if rec.Code != http.StatusInsufficientStorage {
		t.Fatalf("status = %d, want 507", rec.Code)
	}
}

// TestHealth verifies the health endpoint.
func TestHealth(t *testing.T) {
	m, _ := testRouter(t)
	rec := m.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
