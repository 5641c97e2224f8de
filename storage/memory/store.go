package memory

import (
	"errors"
	"sync"

	"github.com/saiful3278/Screenshare-backend/model"
)

var (
	ErrConnNotFound = errors.New("connection is not registered")
	ErrRoomNotFound = errors.New("room is not found")
)

// Store owns the connection registry and the room table. Both live behind a
// single mutex and are only reachable through compound operations, so every
// signaling event observes and mutates room state atomically. The mutex is
// never held across delivery.
type Store struct {
	mx    *sync.Mutex
	conns map[string]*model.Connection
	rooms map[string]*model.Room
}

func NewStore() *Store {
	return &Store{
		mx:    &sync.Mutex{},
		conns: make(map[string]*model.Connection),
		rooms: make(map[string]*model.Room),
	}
}

// Register creates an Unassigned connection record.
func (s *Store) Register(connID string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.conns[connID] = &model.Connection{ID: connID}
}

// Lookup returns a copy of the connection record.
func (s *Store) Lookup(connID string) (model.Connection, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return model.Connection{}, ErrConnNotFound
	}
	return *conn, nil
}

// Room returns a copy of the room, viewer order preserved.
func (s *Store) Room(roomID string) (model.Room, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return model.Room{}, ErrRoomNotFound
	}
	cp := *room
	cp.ViewerIDs = append([]string(nil), room.ViewerIDs...)
	return cp, nil
}

// RoomCount returns the number of rooms with a live host.
func (s *Store) RoomCount() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.rooms)
}

// CreateRoom creates (or takes over) a room hosted by hostID. If the host
// connection already belongs to a room it leaves that room first; the
// returned departure describes who must be notified. If a room with the same
// id already exists it is replaced and its members are orphaned back to
// Unassigned; the orphan list is returned for logging.
func (s *Store) CreateRoom(roomID, hostID string) (*model.Departure, []string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	host, ok := s.conns[hostID]
	if !ok {
		return nil, nil, ErrConnNotFound
	}

	dep := s.leaveLocked(host)

	var orphans []string
	if prev, exists := s.rooms[roomID]; exists {
		orphans = s.evictLocked(prev)
	}

	s.rooms[roomID] = &model.Room{ID: roomID, HostID: hostID}
	host.Role = model.RoleHost
	host.RoomID = roomID
	return dep, orphans, nil
}

// AddViewer appends connID to the room's viewer set, leaving any prior room
// first. Membership stays unique: a clean leave always precedes the append.
func (s *Store) AddViewer(roomID, connID string) (*model.Departure, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return nil, ErrConnNotFound
	}
	room, exists := s.rooms[roomID]
	if !exists {
		return nil, ErrRoomNotFound
	}
	if room.HostID == connID {
		// The host joining its own room would tear it down mid-join.
		// Rejecting before the leave keeps the room untouched.
		return nil, ErrRoomNotFound
	}

	dep := s.leaveLocked(conn)

	room.ViewerIDs = append(room.ViewerIDs, connID)
	conn.Role = model.RoleViewer
	conn.RoomID = roomID
	return dep, nil
}

// StopShare tears down the room hosted by connID. Reports false when connID
// is not the live host of its room.
func (s *Store) StopShare(connID string) (*model.Departure, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()

	conn, ok := s.conns[connID]
	if !ok || conn.Role != model.RoleHost {
		return nil, false
	}
	room, exists := s.rooms[conn.RoomID]
	if !exists || room.HostID != connID {
		return nil, false
	}
	return s.leaveLocked(conn), true
}

// RemoveConnection performs disconnect cleanup: leave the room (if any) and
// drop the registry record. Returns nil when the connection had no live room.
func (s *Store) RemoveConnection(connID string) *model.Departure {
	s.mx.Lock()
	defer s.mx.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return nil
	}
	dep := s.leaveLocked(conn)
	delete(s.conns, connID)
	return dep
}

// leaveLocked removes conn from its current room, if that room is still live.
// A departing host deletes the room and orphans its viewers; a departing
// viewer is removed from the viewer set (no-op if absent). The connection is
// reset to Unassigned either way.
func (s *Store) leaveLocked(conn *model.Connection) *model.Departure {
	if conn.RoomID == "" {
		return nil
	}

	roomID := conn.RoomID
	conn.RoomID = ""
	wasHost := conn.Role == model.RoleHost
	conn.Role = model.RoleUnassigned

	room, exists := s.rooms[roomID]
	if !exists {
		return nil
	}

	if wasHost && room.HostID == conn.ID {
		viewers := s.evictLocked(room)
		return &model.Departure{RoomID: roomID, WasHost: true, ViewerIDs: viewers}
	}

	removed := false
	for i, id := range room.ViewerIDs {
		if id == conn.ID {
			room.ViewerIDs = append(room.ViewerIDs[:i], room.ViewerIDs[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		// Stale reference, e.g. the room was overwritten from under us.
		return nil
	}
	return &model.Departure{RoomID: roomID, HostID: room.HostID}
}

// evictLocked deletes the room and resets its members to Unassigned.
// Returns the evicted viewer ids in join order.
func (s *Store) evictLocked(room *model.Room) []string {
	delete(s.rooms, room.ID)

	viewers := append([]string(nil), room.ViewerIDs...)
	for _, id := range viewers {
		if v, ok := s.conns[id]; ok && v.RoomID == room.ID {
			v.RoomID = ""
			v.Role = model.RoleUnassigned
		}
	}
	if h, ok := s.conns[room.HostID]; ok && h.RoomID == room.ID {
		h.RoomID = ""
		h.Role = model.RoleUnassigned
	}
	return viewers
}
