package bridge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fr4iser90/FoundryCord-sub001/internal/snapshot"
	"github.com/fr4iser90/FoundryCord-sub001/internal/transport"
)

// SendResult describes the outcome of a Send call.
type SendResult struct {
	Status int   // HTTP status when the backend answered, else 0
	Err    error // nil on success
}

func (r SendResult) OK() bool { return r.Err == nil }

// Send delivers s, or the last collected snapshot when s is nil. Without
// either it fails with ErrNoData and makes no request. Failures are never
// retried.
func (b *Bridge) Send(ctx context.Context, s *snapshot.Snapshot) SendResult {
	b.mu.Lock()
	if s == nil {
		s = b.last
	}
	token := b.token
	b.mu.Unlock()

	if s == nil {
		b.logger.Warn("send_skipped", zap.String("reason", "no_data"))
		return SendResult{Err: ErrNoData}
	}
	if b.sender == nil {
		return SendResult{Err: errors.New("no backend configured")}
	}

	if err := b.sender.Send(ctx, s, token); err != nil {
		res := SendResult{Err: err}
		var se *transport.StatusError
		if errors.As(err, &se) {
			res.Status = se.Status
		}
		b.logger.Error("snapshot_send_failed", zap.Int("status", res.Status), zap.Error(err))
		return res
	}
	b.logger.Info("snapshot_sent", zap.Int64("timestamp", s.Timestamp), zap.Int("collectors", len(s.Names())))
	return SendResult{}
}
