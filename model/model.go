package model

// Role is a connection's position in a room. A connection starts Unassigned
// and becomes Host or Viewer when it creates or joins a room. A forced leave
// (room overwritten or host stopped sharing) returns it to Unassigned.
type Role int8

const (
	RoleUnassigned Role = iota
	RoleHost
	RoleViewer
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleViewer:
		return "viewer"
	default:
		return "unassigned"
	}
}

// Connection is one live transport session. The ID is assigned by the
// transport at connect time and is stable for the connection's lifetime.
type Connection struct {
	ID     string
	RoomID string
	Role   Role
}

// Room groups one host and its viewers under a shared identifier.
// ViewerIDs keeps join order; membership is unique.
type Room struct {
	ID        string
	HostID    string
	ViewerIDs []string
}

// Departure describes a connection leaving its room, either explicitly or as
// part of disconnect cleanup. WasHost distinguishes the two cascade shapes:
// a departing host takes the room and its viewers with it, a departing viewer
// leaves the host to be notified.
type Departure struct {
	RoomID    string
	WasHost   bool
	HostID    string   // surviving host, set for viewer departures
	ViewerIDs []string // affected viewers, set for host departures
}

// Wire is the per-connection channel pair between the transport and the
// coordinator. RX carries raw inbound frames (validated by the coordinator),
// TX carries outbound envelopes to be serialized by the transport.
type Wire struct {
	RX chan []byte
	TX chan Envelope
}

func NewWire() Wire {
	return Wire{
		RX: make(chan []byte),
		TX: make(chan Envelope),
	}
}
