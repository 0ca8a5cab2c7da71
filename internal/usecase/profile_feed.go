package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/core/port"
	"github.com/linzell/authcore/internal/repository"
)

// profileFeedBuffer bounds the per-subscriber event channel. A slow consumer
// exerts backpressure instead of growing memory.
const profileFeedBuffer = 32

// ErrProfileNotFound indicates the session owner has no readable profile.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileEvent is one entry in a live profile stream. Exactly one of
// Snapshot or Err is set; an event with Err set is terminal.
type ProfileEvent struct {
	Snapshot *domain.ProfileSnapshot
	Err      error
}

// ProfileFeedService streams live projections of a user's profile. The first
// event is always a snapshot of the current state; subsequent events follow
// storage change notifications filtered to the subscriber's own record.
type ProfileFeedService struct {
	users   port.UserRepository
	watcher port.UserWatcher
	logger  *zap.Logger
	now     func() time.Time
}

// NewProfileFeedService constructs a ProfileFeedService.
func NewProfileFeedService(users port.UserRepository, watcher port.UserWatcher, log *zap.Logger) *ProfileFeedService {
	if log == nil {
		log = zap.NewNop()
	}
	service := &ProfileFeedService{
		users:   users,
		watcher: watcher,
		logger:  log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ProfileFeedService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// StreamProfile opens a live feed for the session owner. The returned channel
// is closed when the feed ends: after a terminal error event, or when ctx is
// cancelled. The subscription and its resources are released with ctx.
func (s *ProfileFeedService) StreamProfile(ctx context.Context, session *domain.Session) (<-chan ProfileEvent, error) {
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if s.users == nil || s.watcher == nil {
		return nil, fmt.Errorf("profile feed not fully configured")
	}

	out := make(chan ProfileEvent, profileFeedBuffer)
	go s.run(ctx, session.UserID, out)

	return out, nil
}

func (s *ProfileFeedService) run(ctx context.Context, userID string, out chan<- ProfileEvent) {
	defer close(out)

	snapshot, err := s.readSnapshot(ctx, userID)
	if err != nil {
		s.send(ctx, out, ProfileEvent{Err: err})
		return
	}
	if !s.send(ctx, out, ProfileEvent{Snapshot: snapshot}) {
		return
	}

	changes, err := s.watcher.Watch(ctx)
	if err != nil {
		s.logger.Error("open profile watch failed",
			zap.String("user_id", userID),
			zap.Error(err))
		s.send(ctx, out, ProfileEvent{Err: fmt.Errorf("watch profile changes: %w", err)})
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.RecordID != userID {
				continue
			}
			if change.Op == domain.ChangeDelete {
				s.send(ctx, out, ProfileEvent{Err: ErrProfileNotFound})
				return
			}

			snapshot, err := s.readSnapshot(ctx, userID)
			if err != nil {
				s.send(ctx, out, ProfileEvent{Err: err})
				return
			}
			if !s.send(ctx, out, ProfileEvent{Snapshot: snapshot}) {
				return
			}
		}
	}
}

func (s *ProfileFeedService) readSnapshot(ctx context.Context, userID string) (*domain.ProfileSnapshot, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if user.DeletedAt != nil {
		return nil, ErrProfileNotFound
	}

	snapshot := user.Snapshot(s.now())
	return &snapshot, nil
}

// send blocks until the subscriber drains the event or ctx is cancelled.
func (s *ProfileFeedService) send(ctx context.Context, out chan<- ProfileEvent, event ProfileEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
