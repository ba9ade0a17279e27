package proto

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when a frame is not a structurally valid envelope.
var ErrMalformed = errors.New("malformed envelope")

// Field numbers, see signaling.proto.
const (
	fieldPeerUserID   protowire.Number = 1
	fieldOffer        protowire.Number = 2
	fieldAnswer       protowire.Number = 3
	fieldIceCandidate protowire.Number = 4
	fieldMembership   protowire.Number = 5

	fieldMembers     protowire.Number = 1
	fieldEntryKey    protowire.Number = 1
	fieldEntryValue  protowire.Number = 2
	fieldDisplayName protowire.Number = 1
)

func kindField(k Kind) protowire.Number {
	switch k {
	case KindOffer:
		return fieldOffer
	case KindAnswer:
		return fieldAnswer
	case KindIceCandidate:
		return fieldIceCandidate
	}
	return 0
}

func fieldKind(num protowire.Number) Kind {
	switch num {
	case fieldOffer:
		return KindOffer
	case fieldAnswer:
		return KindAnswer
	case fieldIceCandidate:
		return KindIceCandidate
	}
	return KindNone
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendPayload(b []byte, p Payload) []byte {
	if num := kindField(p.Kind); num != 0 {
		b = appendString(b, num, p.Data)
	}
	return b
}

// EncodeInbound encodes a client command.
func EncodeInbound(in Inbound) []byte {
	var b []byte
	if in.TargetUserID != "" {
		b = appendString(b, fieldPeerUserID, in.TargetUserID)
	}
	return appendPayload(b, in.Payload)
}

// EncodeOutbound encodes a relay message. Membership entries are written in
// key order so equal snapshots encode to equal bytes.
func EncodeOutbound(out Outbound) []byte {
	var b []byte
	if out.FromUserID != "" {
		b = appendString(b, fieldPeerUserID, out.FromUserID)
	}
	if !out.IsMembership() {
		return appendPayload(b, out.Payload)
	}

	var update []byte
	for _, id := range slices.Sorted(maps.Keys(out.Membership)) {
		var state []byte
		if name := out.Membership[id].DisplayName; name != "" {
			state = appendString(state, fieldDisplayName, name)
		}
		var entry []byte
		entry = appendString(entry, fieldEntryKey, id)
		entry = protowire.AppendTag(entry, fieldEntryValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, state)

		update = protowire.AppendTag(update, fieldMembers, protowire.BytesType)
		update = protowire.AppendBytes(update, entry)
	}
	b = protowire.AppendTag(b, fieldMembership, protowire.BytesType)
	return protowire.AppendBytes(b, update)
}

// DecodeInbound decodes a client command. Unknown fields are skipped. An
// envelope without a payload decodes successfully with an empty Payload.
func DecodeInbound(b []byte) (Inbound, error) {
	var in Inbound
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num <= fieldIceCandidate && typ != protowire.BytesType {
			return wireTypeError(num, typ)
		}
		switch {
		case num == fieldPeerUserID:
			s, err := utf8String(v)
			if err != nil {
				return err
			}
			in.TargetUserID = s
		case fieldKind(num) != KindNone:
			s, err := utf8String(v)
			if err != nil {
				return err
			}
			in.Payload = Payload{Kind: fieldKind(num), Data: s}
		}
		return nil
	})
	if err != nil {
		return Inbound{}, err
	}
	return in, nil
}

// DecodeOutbound decodes a relay message.
func DecodeOutbound(b []byte) (Outbound, error) {
	var out Outbound
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num <= fieldMembership && typ != protowire.BytesType {
			return wireTypeError(num, typ)
		}
		switch {
		case num == fieldPeerUserID:
			s, err := utf8String(v)
			if err != nil {
				return err
			}
			out.FromUserID = s
		case num == fieldMembership:
			m, err := decodeMembership(v)
			if err != nil {
				return err
			}
			out.Payload = Payload{}
			out.Membership = m
		case fieldKind(num) != KindNone:
			s, err := utf8String(v)
			if err != nil {
				return err
			}
			out.Membership = nil
			out.Payload = Payload{Kind: fieldKind(num), Data: s}
		}
		return nil
	})
	if err != nil {
		return Outbound{}, err
	}
	return out, nil
}

func decodeMembership(b []byte) (Membership, error) {
	m := Membership{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != fieldMembers || typ != protowire.BytesType {
			return nil
		}
		var (
			key   string
			state MemberState
		)
		err := walk(v, func(num protowire.Number, typ protowire.Type, v []byte) error {
			if typ != protowire.BytesType {
				return nil
			}
			switch num {
			case fieldEntryKey:
				s, err := utf8String(v)
				if err != nil {
					return err
				}
				key = s
			case fieldEntryValue:
				return walk(v, func(num protowire.Number, typ protowire.Type, v []byte) error {
					if num != fieldDisplayName || typ != protowire.BytesType {
						return nil
					}
					s, err := utf8String(v)
					if err != nil {
						return err
					}
					state.DisplayName = s
					return nil
				})
			}
			return nil
		})
		if err != nil {
			return err
		}
		m[key] = state
		return nil
	})
	return m, err
}

// walk visits every field of a message. For length-delimited fields v holds
// the contents; for other wire types v is nil.
func walk(b []byte, visit func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		var v []byte
		if typ == protowire.BytesType {
			v, n = protowire.ConsumeBytes(b)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := visit(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}

// wireTypeError reports a known field sent with a wire type other than the
// schema's.
func wireTypeError(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)
}

func utf8String(v []byte) (string, error) {
	if !utf8.Valid(v) {
		return "", fmt.Errorf("%w: invalid UTF-8 in string field", ErrMalformed)
	}
	return string(v), nil
}
