package obs

import (
	"context"
	"time"

	"drive-time-scheduler/internal/platform/logger"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// WithRequestID stores the request id used by Time.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time logs the duration of op at debug level, or at warn level when *errp is set.
//
//	defer obs.Time(ctx, log, "ors.GetDistances")(&err)
func Time(ctx context.Context, log logger.Logger, name string) func(errp *error) {
	start := time.Now()
	log = logger.OrNop(log)
	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Warnf("req_id=%s op=%s dur=%dms err=%v", reqID, name, dur.Milliseconds(), *errp)
			return
		}
		log.Debugf("req_id=%s op=%s dur=%dms", reqID, name, dur.Milliseconds())
	}
}
