package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Crohnos/dnd-generator/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-42")
	req.Header.Set(headerTraceID, "trace-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil || seen.RequestID != "req-42" || seen.TraceID != "trace-42" {
		t.Fatalf("trace data = %+v", seen)
	}
	if rec.Header().Get(headerRequestID) != "req-42" {
		t.Fatalf("request id not echoed")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if seen == nil || seen.RequestID == "" || seen.TraceID == "" {
		t.Fatalf("ids not generated: %+v", seen)
	}
	if rec.Header().Get(headerRequestID) != seen.RequestID {
		t.Fatalf("generated request id not echoed")
	}
}
