package relay

import (
	"sync/atomic"

	"github.com/mossy-p/signaling-relay/internal/proto"
)

// Subscription is a point-in-time view of a room's membership. Changed is
// closed as soon as a newer view has been published; call Relay.Watch again
// to obtain it.
type Subscription struct {
	Members proto.Membership
	Changed <-chan struct{}
}

type view struct {
	members proto.Membership
	changed chan struct{}
}

// watch publishes immutable membership views to any number of readers.
// publish must only be called from the relay loop.
type watch struct {
	cur atomic.Pointer[view]
}

func newWatch() *watch {
	w := &watch{}
	w.cur.Store(&view{members: proto.Membership{}, changed: make(chan struct{})})
	return w
}

func (w *watch) publish(m proto.Membership) Subscription {
	next := &view{members: m, changed: make(chan struct{})}
	prev := w.cur.Swap(next)
	close(prev.changed)
	return Subscription{Members: next.members, Changed: next.changed}
}

func (w *watch) load() Subscription {
	v := w.cur.Load()
	return Subscription{Members: v.members, Changed: v.changed}
}
