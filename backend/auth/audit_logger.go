package auth

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"formhub/utils/logging"

	"github.com/go-chi/chi/v5"
)

func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); len(ip) > 0 {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); len(forwarded) > 0 {
		// The first entry is the originating client, the rest are proxies.
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if len(r.RemoteAddr) > 0 {
		return r.RemoteAddr
	}
	return "unknown"
}

// auditEvent classifies the request so audit records can be filtered by
// operation in the log store. The audit middleware runs before the subrouters
// resolve the final route, so classification works off the raw path.
func auditEvent(r *http.Request) logging.LogCode {
	path := r.URL.Path

	switch {
	case strings.HasSuffix(path, "/integration/ticket"):
		return logging.INTEGRATION_TICKET
	case strings.Contains(path, "/integration/"):
		return logging.INTEGRATION_EXPORT
	case strings.Contains(path, "/response/"):
		switch {
		case strings.HasSuffix(path, "/summary"):
			return logging.RESPONSE_AGGREGATE
		case strings.HasSuffix(path, "/submit"):
			return logging.RESPONSE_SUBMIT
		}
	case strings.Contains(path, "/template/"):
		rest := path[strings.LastIndex(path, "/template/")+len("/template/"):]
		switch {
		case strings.HasSuffix(path, "/create"):
			return logging.TEMPLATE_CREATE
		case strings.HasSuffix(path, "/update"):
			return logging.TEMPLATE_UPDATE
		case strings.Contains(path, "/access"):
			return logging.TEMPLATE_ACCESS
		case r.Method == http.MethodDelete && !strings.Contains(rest, "/"):
			return logging.TEMPLATE_DELETE
		}
	}

	return logging.SYSTEM
}

func urlParamAttrs(r *http.Request) []interface{} {
	attrs := make([]interface{}, 0)

	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return attrs
	}
	for i, key := range rctx.URLParams.Keys {
		if key != "*" {
			attrs = append(attrs, slog.String(key, rctx.URLParams.Values[i]))
		}
	}

	return attrs
}

func queryAttrs(r *http.Request) []interface{} {
	attrs := make([]interface{}, 0)
	for key, values := range r.URL.Query() {
		attrs = append(attrs, slog.String(key, strings.Join(values, ";")))
	}
	return attrs
}

// AuditLogger writes one JSON record per authenticated request, tagged with
// the acting user and an event code.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(stream io.Writer) AuditLogger {
	logger := slog.New(slog.NewJSONHandler(stream, nil))
	return AuditLogger{logger: logger}
}

func (log *AuditLogger) Middleware(next http.Handler) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		log.logger.Info(string(auditEvent(r)),
			"username", user.Username,
			"user_id", user.Id,
			"client_ip", clientAddr(r),
			"method", r.Method,
			"url", r.URL.Path,
			slog.Group("url_params", urlParamAttrs(r)...),
			slog.Group("query_params", queryAttrs(r)...),
		)

		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(handler)
}
