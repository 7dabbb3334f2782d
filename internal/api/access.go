package api

import "context"

type contextKey string

const (
	requestIDContextKey    contextKey = "requestID"
	accessRecordContextKey contextKey = "accessRecord"
)

// accessRecord collects what handlers learn about a request so middleware
// can report it once the response is written.
type accessRecord struct {
	key string
	typ string
	err error
}

func withAccessRecord(ctx context.Context) (context.Context, *accessRecord) {
	rec := &accessRecord{}
	return context.WithValue(ctx, accessRecordContextKey, rec), rec
}

func accessRecordFrom(ctx context.Context) *accessRecord {
	rec, _ := ctx.Value(accessRecordContextKey).(*accessRecord)
	return rec
}

// noteEntry records the registry key and conversion a request asked for.
func noteEntry(ctx context.Context, key, typ string) {
	if rec := accessRecordFrom(ctx); rec != nil {
		rec.key = key
		rec.typ = typ
	}
}

func noteError(ctx context.Context, err error) {
	if rec := accessRecordFrom(ctx); rec != nil {
		rec.err = err
	}
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
