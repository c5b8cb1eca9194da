package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"formhub/backend/schema"
	"formhub/utils/logging"

	"github.com/google/uuid"
)

func auditRequest(t *testing.T, log *AuditLogger, method, path string, user schema.User) {
	t.Helper()

	handler := log.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(context.WithValue(req.Context(), userRequestContextKey, user))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass through audit middleware, got status %d", rec.Code)
	}
}

func TestAuditLoggerRecordsUserAndEvent(t *testing.T) {
	var buffer bytes.Buffer
	log := NewAuditLogger(&buffer)

	user := schema.User{Id: uuid.New(), Username: "abc", Email: "abc@mail.com"}

	auditRequest(t, &log, "POST", "/api/v1/template/create", user)

	var record map[string]interface{}
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("audit record is not valid json: %v", err)
	}

	if record["msg"] != string(logging.TEMPLATE_CREATE) {
		t.Fatalf("expected event %v, got %v", logging.TEMPLATE_CREATE, record["msg"])
	}
	if record["username"] != "abc" {
		t.Fatalf("expected username abc, got %v", record["username"])
	}
	if record["user_id"] != user.Id.String() {
		t.Fatalf("expected user id %v, got %v", user.Id, record["user_id"])
	}
	if record["method"] != "POST" {
		t.Fatalf("expected method POST, got %v", record["method"])
	}
}

func TestAuditEventClassification(t *testing.T) {
	tests := []struct {
		method string
		path   string
		event  logging.LogCode
	}{
		{"POST", "/api/v1/template/create", logging.TEMPLATE_CREATE},
		{"POST", "/api/v1/template/5f4c/update", logging.TEMPLATE_UPDATE},
		{"DELETE", "/api/v1/template/5f4c", logging.TEMPLATE_DELETE},
		{"POST", "/api/v1/template/5f4c/access", logging.TEMPLATE_ACCESS},
		{"DELETE", "/api/v1/template/5f4c/access/9a1b", logging.TEMPLATE_ACCESS},
		{"POST", "/api/v1/response/5f4c/submit", logging.RESPONSE_SUBMIT},
		{"GET", "/api/v1/response/5f4c/summary", logging.RESPONSE_AGGREGATE},
		{"POST", "/api/v1/integration/ticket", logging.INTEGRATION_TICKET},
		{"POST", "/api/v1/integration/crm", logging.INTEGRATION_EXPORT},
		{"POST", "/api/v1/integration/5f4c/erp-push", logging.INTEGRATION_EXPORT},
		{"DELETE", "/api/v1/template/5f4c/comment/9a1b", logging.SYSTEM},
		{"GET", "/api/v1/user/info", logging.SYSTEM},
	}

	for _, test := range tests {
		req := httptest.NewRequest(test.method, test.path, nil)
		if event := auditEvent(req); event != test.event {
			t.Fatalf("%v %v: expected event %v, got %v", test.method, test.path, test.event, event)
		}
	}
}

func TestClientAddrPrefersForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/user/info", nil)
	req.RemoteAddr = "10.0.0.1:9999"

	if addr := clientAddr(req); addr != "10.0.0.1:9999" {
		t.Fatalf("expected remote addr fallback, got %v", addr)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	if addr := clientAddr(req); addr != "203.0.113.7" {
		t.Fatalf("expected first forwarded entry, got %v", addr)
	}

	req.Header.Set("X-Real-Ip", "203.0.113.9")
	if addr := clientAddr(req); addr != "203.0.113.9" {
		t.Fatalf("expected real ip header to win, got %v", addr)
	}
}
