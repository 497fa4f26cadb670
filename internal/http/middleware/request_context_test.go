package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/platform/ctxutil"
)

func TestAttachRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	teacher := uuid.New()

	var got *ctxutil.RequestData
	r := gin.New()
	r.Use(AttachRequestContext())
	r.GET("/x", func(c *gin.Context) {
		got = ctxutil.GetRequestData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderTeacherID, teacher.String())
	req.Header.Set(HeaderSchoolID, "not-a-uuid")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.TeacherID != teacher {
		t.Fatalf("teacher id not attached: %+v", got)
	}
	if got.SchoolID != uuid.Nil {
		t.Fatalf("malformed school id must be ignored, got %s", got.SchoolID)
	}
}

func TestAttachTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get(HeaderRequestID) != "req-42" {
		t.Fatalf("request id = %q", rec.Header().Get(HeaderRequestID))
	}
	if rec.Header().Get(HeaderTraceID) != "req-42" {
		t.Fatalf("without a span the trace id falls back to the request id, got %q", rec.Header().Get(HeaderTraceID))
	}
}
