// Package relay implements the per-room actor that owns membership and routes
// signaling payloads between members, and the registry that hands out one
// relay per room name.
package relay

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mossy-p/signaling-relay/internal/metrics"
	"github.com/mossy-p/signaling-relay/internal/proto"
)

// ErrStopped is returned when the relay loop is no longer running, which only
// happens once the registry's context has been cancelled.
var ErrStopped = errors.New("relay stopped")

// Outbox is the capability the relay uses to push messages to one member's
// session. The relay never closes it.
type Outbox chan<- proto.Outbound

type member struct {
	name   string
	outbox Outbox
}

// command is applied by the relay loop, in queue order.
type command interface {
	apply(r *Relay)
}

type joinCommand struct {
	userID string
	name   string
	outbox Outbox
	ack    chan Subscription
}

type leaveCommand struct {
	userID string
	outbox Outbox
}

type routeCommand struct {
	from    string
	to      string
	payload proto.Payload
}

func (c joinCommand) apply(r *Relay)  { r.join(c) }
func (c leaveCommand) apply(r *Relay) { r.leave(c) }
func (c routeCommand) apply(r *Relay) { r.route(c) }

// Relay serializes all membership changes and routing for one room through a
// single goroutine. members is only touched by that goroutine.
type Relay struct {
	name     string
	commands chan command
	done     <-chan struct{}
	watch    *watch
	log      *zap.Logger

	members map[string]member
}

func newRelay(name string, queueSize int, done <-chan struct{}, log *zap.Logger) *Relay {
	return &Relay{
		name:     name,
		commands: make(chan command, queueSize),
		done:     done,
		watch:    newWatch(),
		log:      log.With(zap.String("room", name)),
		members:  make(map[string]member),
	}
}

// Name returns the room name.
func (r *Relay) Name() string { return r.name }

// Join admits a member, replacing any previous entry with the same user id,
// and returns the membership view published by that admission. Every
// connected member, including the new one, observes the change.
func (r *Relay) Join(ctx context.Context, userID, displayName string, outbox Outbox) (Subscription, error) {
	ack := make(chan Subscription, 1)
	if err := r.send(ctx, joinCommand{userID: userID, name: displayName, outbox: outbox, ack: ack}); err != nil {
		return Subscription{}, err
	}
	select {
	case sub := <-ack:
		return sub, nil
	case <-ctx.Done():
		return Subscription{}, ctx.Err()
	case <-r.done:
		return Subscription{}, ErrStopped
	}
}

// Leave removes the member registered with this outbox. It is a no-op when the
// user is absent or has since been replaced by a newer join.
func (r *Relay) Leave(ctx context.Context, userID string, outbox Outbox) error {
	return r.send(ctx, leaveCommand{userID: userID, outbox: outbox})
}

// Route delivers payload from one member to another. Delivery is best effort:
// unknown targets and full outboxes drop the message.
func (r *Relay) Route(ctx context.Context, from, to string, payload proto.Payload) error {
	return r.send(ctx, routeCommand{from: from, to: to, payload: payload})
}

// Watch returns the latest published membership view.
func (r *Relay) Watch() Subscription { return r.watch.load() }

// Members returns the latest published membership.
func (r *Relay) Members() proto.Membership { return r.watch.load().Members }

// send blocks while the command queue is full; commands are never discarded
// at this stage.
func (r *Relay) send(ctx context.Context, cmd command) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

func (r *Relay) run() {
	r.log.Debug("relay started")
	for {
		select {
		case <-r.done:
			r.log.Debug("relay stopped")
			return
		case cmd := <-r.commands:
			cmd.apply(r)
		}
	}
}

func (r *Relay) join(c joinCommand) {
	if prev, ok := r.members[c.userID]; ok {
		r.log.Info("member replaced",
			zap.String("user_id", c.userID),
			zap.String("previous_name", prev.name),
			zap.String("display_name", c.name))
	} else {
		r.log.Info("member joined", zap.String("user_id", c.userID), zap.String("display_name", c.name))
	}
	r.members[c.userID] = member{name: c.name, outbox: c.outbox}
	c.ack <- r.publish()
}

func (r *Relay) leave(c leaveCommand) {
	m, ok := r.members[c.userID]
	if !ok {
		r.log.Debug("leave for absent member", zap.String("user_id", c.userID))
		return
	}
	if m.outbox != c.outbox {
		r.log.Debug("stale leave ignored", zap.String("user_id", c.userID))
		return
	}
	delete(r.members, c.userID)
	r.log.Info("member left", zap.String("user_id", c.userID))
	r.publish()
}

func (r *Relay) route(c routeCommand) {
	log := r.log.With(
		zap.String("from_user_id", c.from),
		zap.String("target_user_id", c.to),
		zap.Stringer("payload", c.payload))

	if c.from == c.to {
		log.Warn("dropping self-addressed payload")
		metrics.Dropped.WithLabelValues(metrics.DropSelfAddress).Inc()
		return
	}
	target, ok := r.members[c.to]
	if !ok {
		log.Warn("target not in room, dropping payload")
		metrics.Dropped.WithLabelValues(metrics.DropNoTarget).Inc()
		return
	}

	select {
	case target.outbox <- proto.Relayed(c.from, c.payload):
		log.Debug("payload routed")
		metrics.Routed.WithLabelValues(c.payload.Kind.String()).Inc()
	default:
		log.Warn("target outbox full, dropping payload")
		metrics.Dropped.WithLabelValues(metrics.DropOutboxFull).Inc()
	}
}

// publish copies the display names into a fresh map so readers never share
// state with the loop.
func (r *Relay) publish() Subscription {
	snapshot := make(proto.Membership, len(r.members))
	for id, m := range r.members {
		snapshot[id] = proto.MemberState{DisplayName: m.name}
	}
	metrics.Members.WithLabelValues(r.name).Set(float64(len(snapshot)))
	return r.watch.publish(snapshot)
}
