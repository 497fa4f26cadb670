package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type traceDataKey struct{}
type requestDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

// RequestData carries the caller identity forwarded by the upstream gateway.
type RequestData struct {
	TeacherID uuid.UUID
	SchoolID  uuid.UUID
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
