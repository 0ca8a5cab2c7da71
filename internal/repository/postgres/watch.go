package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/core/domain"
)

// usersChannel is the NOTIFY channel row triggers on authcore.users publish to.
const usersChannel = "authcore_users_changed"

// UserWatcher implements port.UserWatcher on top of Postgres LISTEN/NOTIFY.
// Each Watch call holds a dedicated connection for the lifetime of its ctx.
type UserWatcher struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewUserWatcher constructs a UserWatcher.
func NewUserWatcher(pool *pgxpool.Pool, log *zap.Logger) *UserWatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserWatcher{pool: pool, logger: log}
}

type userChangePayload struct {
	Op       string    `json:"op"`
	RecordID string    `json:"record_id"`
	At       time.Time `json:"at"`
}

// Watch subscribes to user change notifications. The returned channel is
// closed when ctx is cancelled or the connection drops.
func (w *UserWatcher) Watch(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+usersChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen on %s: %w", usersChannel, err)
	}

	out := make(chan domain.ChangeEvent, 32)

	go func() {
		defer close(out)
		defer conn.Release()

		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Warn("user change subscription dropped", zap.Error(err))
				}
				return
			}

			var payload userChangePayload
			if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
				w.logger.Warn("malformed user change payload",
					zap.String("payload", notification.Payload),
					zap.Error(err))
				continue
			}

			event := domain.ChangeEvent{
				Op:       domain.ChangeOp(payload.Op),
				RecordID: payload.RecordID,
				At:       payload.At,
			}

			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
