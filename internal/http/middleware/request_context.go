package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/attendance-backend/internal/platform/ctxutil"
)

const (
	HeaderTeacherID = "X-Teacher-Id"
	HeaderSchoolID  = "X-School-Id"
	HeaderRequestID = "X-Request-Id"
	HeaderTraceID   = "X-Trace-Id"
)

// AttachTraceContext assigns request and trace ids and echoes them on the response.
// The active span's trace id wins over a client supplied one.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		} else if h := strings.TrimSpace(c.GetHeader(HeaderTraceID)); h != "" {
			traceID = h
		} else {
			traceID = reqID
		}

		td := &ctxutil.TraceData{TraceID: traceID, RequestID: reqID}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Set("request_id", reqID)
		c.Header(HeaderRequestID, reqID)
		c.Header(HeaderTraceID, traceID)
		c.Next()
	}
}

// AttachRequestContext records the caller identity forwarded by the gateway.
// Malformed ids are ignored.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{}
		if id, err := uuid.Parse(strings.TrimSpace(c.GetHeader(HeaderTeacherID))); err == nil {
			rd.TeacherID = id
		}
		if id, err := uuid.Parse(strings.TrimSpace(c.GetHeader(HeaderSchoolID))); err == nil {
			rd.SchoolID = id
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}
