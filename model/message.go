package model

import "encoding/json"

// MaxPayloadBytes is the serialized size cap for a single signaling message.
const MaxPayloadBytes = 65536

// Inbound event kinds accepted by the coordinator.
const (
	KindStartShare   = "start-share"
	KindJoinView     = "join-view"
	KindOffer        = "offer"
	KindAnswer       = "answer"
	KindICE          = "ice"
	KindICECandidate = "ice-candidate"
	KindStopShare    = "stop-share"
	KindGetAvailable = "get-available"
)

// Outbound event kinds emitted by the coordinator.
const (
	KindRoomCreated      = "room-created"
	KindHostStopped      = "host-stopped"
	KindAvailableCount   = "available-count"
	KindViewerJoined     = "viewer-joined"
	KindViewJoined       = "view-joined"
	KindViewerLeft       = "viewer-left"
	KindHostDisconnected = "host-disconnected"
	KindError            = "error"
)

// Envelope is the wire representation of every signaling message, in both
// directions. Which fields are meaningful depends on Type; Decode narrows an
// inbound envelope to a typed event.
type Envelope struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	TargetID  string          `json:"targetId,omitempty"`
	FromID    string          `json:"fromId,omitempty"`
	ViewerID  string          `json:"viewerId,omitempty"`
	Count     *int            `json:"count,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// ProtocolError is a recoverable, sender-only protocol violation. Its Error
// string is the exact message delivered to the client in an error envelope.
type ProtocolError struct {
	msg string
}

func (e *ProtocolError) Error() string {
	return e.msg
}

var (
	ErrInvalidEventType = &ProtocolError{"Invalid event type"}
	ErrMalformedPayload = &ProtocolError{"Malformed payload"}
	ErrPayloadTooLarge  = &ProtocolError{"Message too large"}
	ErrMissingRoomID    = &ProtocolError{"Missing roomId"}
	ErrRoomNotFound     = &ProtocolError{"Room not found"}

	errInvalidOffer  = &ProtocolError{"Invalid offer payload"}
	errInvalidAnswer = &ProtocolError{"Invalid answer payload"}
	errInvalidICE    = &ProtocolError{"Invalid ICE payload"}
)

// Event is an inbound signaling event narrowed to its kind-specific fields.
type Event interface {
	Kind() string
}

type StartShare struct {
	RoomID string // optional, defaults to the sender's connection id
}

func (StartShare) Kind() string { return KindStartShare }

type JoinView struct {
	RoomID string
}

func (JoinView) Kind() string { return KindJoinView }

type StopShare struct{}

func (StopShare) Kind() string { return KindStopShare }

type GetAvailable struct{}

func (GetAvailable) Kind() string { return KindGetAvailable }

// Signal is one of offer/answer/ice/ice-candidate. Payload is the
// kind-specific SDP or candidate blob; TargetID selects targeted relay,
// absence of it selects room broadcast.
type Signal struct {
	SignalKind string
	TargetID   string
	Payload    json.RawMessage
}

func (s Signal) Kind() string { return s.SignalKind }

// InvalidPayloadError returns the per-kind InvalidSignalPayload error.
func (s Signal) InvalidPayloadError() *ProtocolError {
	switch s.SignalKind {
	case KindOffer:
		return errInvalidOffer
	case KindAnswer:
		return errInvalidAnswer
	default:
		return errInvalidICE
	}
}

// Decode validates a raw inbound frame and narrows it to a typed event.
// Validation order: JSON shape, event-kind allow-list, serialized size cap.
func Decode(raw []byte) (Event, *ProtocolError) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformedPayload
	}

	var ev Event
	switch env.Type {
	case KindStartShare:
		ev = StartShare{RoomID: env.RoomID}
	case KindJoinView:
		if env.RoomID == "" {
			return nil, ErrMissingRoomID
		}
		ev = JoinView{RoomID: env.RoomID}
	case KindStopShare:
		ev = StopShare{}
	case KindGetAvailable:
		ev = GetAvailable{}
	case KindOffer:
		ev = Signal{SignalKind: KindOffer, TargetID: env.TargetID, Payload: env.Offer}
	case KindAnswer:
		ev = Signal{SignalKind: KindAnswer, TargetID: env.TargetID, Payload: env.Answer}
	case KindICE:
		ev = Signal{SignalKind: KindICE, TargetID: env.TargetID, Payload: env.Candidate}
	case KindICECandidate:
		ev = Signal{SignalKind: KindICECandidate, TargetID: env.TargetID, Payload: env.Candidate}
	default:
		return nil, ErrInvalidEventType
	}

	if len(raw) > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	return ev, nil
}

// RelayEnvelope rebuilds a signal for delivery to a peer, relabeled with the
// sender's connection id. The payload travels in the same field it arrived in.
func RelayEnvelope(s Signal, fromID string) Envelope {
	env := Envelope{Type: s.SignalKind, FromID: fromID}
	switch s.SignalKind {
	case KindOffer:
		env.Offer = s.Payload
	case KindAnswer:
		env.Answer = s.Payload
	default:
		env.Candidate = s.Payload
	}
	return env
}

// ErrorEnvelope wraps a protocol error for delivery to the offending sender.
func ErrorEnvelope(perr *ProtocolError) Envelope {
	return Envelope{Type: KindError, Message: perr.Error()}
}
