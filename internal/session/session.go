// Package session bridges one client connection to its room relay.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mossy-p/signaling-relay/internal/metrics"
	"github.com/mossy-p/signaling-relay/internal/proto"
	"github.com/mossy-p/signaling-relay/internal/relay"
)

// DefaultOutboxSize is the number of relayed messages buffered per session
// before the relay starts dropping.
const DefaultOutboxSize = 24

// ErrClosed is returned by a Conn when the peer closed the connection
// normally.
var ErrClosed = errors.New("connection closed")

// Conn is one client's bidirectional frame stream. ReadFrame is only called
// from one goroutine and WriteFrame from another. Close may be called more
// than once and concurrently with ReadFrame, and must unblock it.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame([]byte) error
	Close() error
}

// Session runs one client's participation in a room from join to leave.
type Session struct {
	ID          string
	UserID      string
	DisplayName string

	relay      *relay.Relay
	conn       Conn
	outboxSize int
	log        *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithOutboxSize sets the outbox capacity.
func WithOutboxSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.outboxSize = n
		}
	}
}

// New prepares a session for userID in room r; nothing happens until Run.
func New(r *relay.Relay, conn Conn, userID, displayName string, log *zap.Logger, opts ...Option) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		relay:       r,
		conn:        conn,
		outboxSize:  DefaultOutboxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = log.Named("session").With(
		zap.String("session_id", s.ID),
		zap.String("room", r.Name()),
		zap.String("user_id", userID))
	return s
}

// Run joins the room and relays messages until the connection fails, the
// client sends a malformed frame, or ctx is cancelled. The member is always
// removed from the room and the connection closed before Run returns. A
// normal close by the client returns nil.
func (s *Session) Run(ctx context.Context) error {
	metrics.Sessions.Inc()
	defer metrics.Sessions.Dec()

	outbox := make(chan proto.Outbound, s.outboxSize)
	sub, err := s.relay.Join(ctx, s.UserID, s.DisplayName, outbox)
	if err == nil {
		s.log.Info("session started", zap.String("display_name", s.DisplayName))
		err = s.loop(ctx, outbox, sub)
	} else {
		err = fmt.Errorf("join room: %w", err)
	}

	// Leave is issued even when the join itself was interrupted; it is a no-op
	// if the join never took effect.
	if lerr := s.relay.Leave(context.WithoutCancel(ctx), s.UserID, outbox); lerr != nil {
		s.log.Warn("leave not delivered", zap.Error(lerr))
	}
	if cerr := s.conn.Close(); cerr != nil {
		s.log.Debug("close connection", zap.Error(cerr))
	}

	switch {
	case err == nil:
		s.log.Info("session closed")
	default:
		metrics.SessionErrors.WithLabelValues(cause(err)).Inc()
		s.log.Error("session terminated", zap.Error(err))
	}
	return err
}

type frame struct {
	data []byte
	err  error
}

func (s *Session) loop(ctx context.Context, outbox <-chan proto.Outbound, sub relay.Subscription) error {
	frames := make(chan frame)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.readFrames(frames, stop)
	}()
	defer func() {
		close(stop)
		// Unblock a pending ReadFrame.
		_ = s.conn.Close()
		wg.Wait()
	}()

	if err := s.write(proto.Snapshot(sub.Members)); err != nil {
		return err
	}

	changed := sub.Changed
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case m := <-outbox:
			if err := s.write(m); err != nil {
				return err
			}

		case f := <-frames:
			if f.err != nil {
				if errors.Is(f.err, ErrClosed) {
					return nil
				}
				return fmt.Errorf("read frame: %w", f.err)
			}
			if err := s.handleFrame(ctx, f.data); err != nil {
				return err
			}

		case <-changed:
			sub = s.relay.Watch()
			changed = sub.Changed
			s.log.Debug("membership changed", zap.Int("members", len(sub.Members)))
			if err := s.write(proto.Snapshot(sub.Members)); err != nil {
				return err
			}
		}
	}
}

func (s *Session) readFrames(frames chan<- frame, stop <-chan struct{}) {
	for {
		data, err := s.conn.ReadFrame()
		select {
		case frames <- frame{data: data, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) error {
	in, err := proto.DecodeInbound(data)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	log := s.log.With(zap.String("target_user_id", in.TargetUserID))
	switch {
	case in.Payload.Empty():
		log.Warn("dropping command without payload")
		metrics.Dropped.WithLabelValues(metrics.DropEmpty).Inc()
		return nil
	case in.TargetUserID == s.UserID:
		log.Warn("dropping self-addressed command", zap.Stringer("payload", in.Payload))
		metrics.Dropped.WithLabelValues(metrics.DropSelfAddress).Inc()
		return nil
	}

	if err := s.relay.Route(ctx, s.UserID, in.TargetUserID, in.Payload); err != nil {
		return fmt.Errorf("route: %w", err)
	}
	return nil
}

func (s *Session) write(m proto.Outbound) error {
	if err := s.conn.WriteFrame(proto.EncodeOutbound(m)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func cause(err error) string {
	switch {
	case errors.Is(err, proto.ErrMalformed):
		return "decode"
	case errors.Is(err, context.Canceled), errors.Is(err, relay.ErrStopped):
		return "shutdown"
	default:
		return "io"
	}
}
