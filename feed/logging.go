package feed

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type loggingSource struct {
	logger log.Logger
	next   Source
}

// NewLoggingSource returns a Source that logs every fetch of next
func NewLoggingSource(logger log.Logger, next Source) Source {
	return &loggingSource{logger: logger, next: next}
}

func (s *loggingSource) Fetch(ctx context.Context) (payload Payload, err error) {
	defer func(begin time.Time) {
		lvl := level.Debug
		if err != nil {
			lvl = level.Warn
		}

		_ = lvl(s.logger).Log(
			"method", "Fetch",
			"resource", payload.Resource,
			"entries", len(payload.Entries),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())

	return s.next.Fetch(ctx)
}
