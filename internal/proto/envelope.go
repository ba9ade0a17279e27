// Package proto defines the envelopes exchanged between clients and the relay
// and their binary encoding. The wire format follows signaling.proto.
package proto

import "fmt"

// Kind identifies which signaling payload an envelope carries.
type Kind int

const (
	KindNone Kind = iota
	KindOffer
	KindAnswer
	KindIceCandidate
)

func (k Kind) String() string {
	switch k {
	case KindOffer:
		return "offer"
	case KindAnswer:
		return "answer"
	case KindIceCandidate:
		return "ice_candidate"
	default:
		return "none"
	}
}

// Payload is an opaque signaling blob relayed verbatim.
type Payload struct {
	Kind Kind
	Data string
}

func Offer(sdp string) Payload              { return Payload{Kind: KindOffer, Data: sdp} }
func Answer(sdp string) Payload             { return Payload{Kind: KindAnswer, Data: sdp} }
func IceCandidate(candidate string) Payload { return Payload{Kind: KindIceCandidate, Data: candidate} }

// Empty reports whether no payload variant is set.
func (p Payload) Empty() bool { return p.Kind == KindNone }

func (p Payload) String() string {
	return fmt.Sprintf("%s(%d bytes)", p.Kind, len(p.Data))
}

// Inbound is a client to relay command.
type Inbound struct {
	TargetUserID string
	Payload      Payload
}

// MemberState is the public view of one room member.
type MemberState struct {
	DisplayName string
}

// Membership maps user id to member state. Values handed out by the relay
// are never mutated after publication.
type Membership map[string]MemberState

// Outbound is a relay to client message: either a relayed payload with its
// sender, or a membership snapshot.
type Outbound struct {
	FromUserID string
	Payload    Payload
	Membership Membership
}

// IsMembership reports whether the message carries a membership snapshot.
func (o Outbound) IsMembership() bool { return o.Membership != nil }

// Relayed builds an outbound message carrying a payload from a peer.
func Relayed(from string, p Payload) Outbound {
	return Outbound{FromUserID: from, Payload: p}
}

// Snapshot builds an outbound membership message. A nil map is sent as an
// empty membership.
func Snapshot(m Membership) Outbound {
	if m == nil {
		m = Membership{}
	}
	return Outbound{Membership: m}
}
