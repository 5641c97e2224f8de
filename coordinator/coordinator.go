package coordinator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/saiful3278/Screenshare-backend/model"
	"github.com/saiful3278/Screenshare-backend/storage/memory"
)

var (
	ErrConnect = errors.New("unable to attach connection")
)

type (
	// Store is the single owner of connection and room state. Every method
	// is atomic with respect to the others.
	Store interface {
		Register(connID string)
		Lookup(connID string) (model.Connection, error)
		Room(roomID string) (model.Room, error)
		RoomCount() int
		CreateRoom(roomID, hostID string) (*model.Departure, []string, error)
		AddViewer(roomID, connID string) (*model.Departure, error)
		StopShare(connID string) (*model.Departure, bool)
		RemoveConnection(connID string) *model.Departure
	}

	// Transport delivers envelopes to live connections and can terminate
	// them. All sends are fire-and-forget.
	Transport interface {
		Connect(connID string, wire model.Wire, cancel context.CancelFunc) error
		Disconnect(connID string) error
		SendTo(ctx context.Context, connID string, env model.Envelope) bool
		Close(connID string)
	}

	// Coordinator implements the signaling protocol: it validates inbound
	// events, mutates room state through the store and instructs the
	// transport which peers to notify.
	Coordinator struct {
		store  Store
		sw     Transport
		logger zerolog.Logger
	}

	Config struct {
		Store     Store
		Transport Transport
		Logger    *zerolog.Logger
	}
)

func NewCoordinator(cfg Config) *Coordinator {
	return &Coordinator{
		store:  cfg.Store,
		sw:     cfg.Transport,
		logger: cfg.Logger.With().Str("component", "coordinator").Logger(),
	}
}

// CreateSession registers a fresh connection and starts consuming its
// inbound frames. cancel is handed to the transport fabric so the
// coordinator can force-close the connection later.
func (c *Coordinator) CreateSession(ctx context.Context, connID string, wire model.Wire, cancel context.CancelFunc) error {
	c.store.Register(connID)
	if err := c.sw.Connect(connID, wire, cancel); err != nil {
		c.store.RemoveConnection(connID)
		return errors.Join(ErrConnect, err)
	}
	c.logger.Debug().Str("connID", connID).Msg("session created")

	go c.readLoop(ctx, connID, wire.RX)
	return nil
}

// DeleteSession runs disconnect cleanup. The transport must have stopped
// feeding the connection's RX before calling this, so no message of the
// connection is handled after its cleanup.
func (c *Coordinator) DeleteSession(ctx context.Context, connID string) {
	dep := c.store.RemoveConnection(connID)
	switch {
	case dep == nil:
	case dep.WasHost:
		for _, viewerID := range dep.ViewerIDs {
			c.sw.SendTo(ctx, viewerID, model.Envelope{Type: model.KindHostDisconnected})
			c.sw.Close(viewerID)
		}
		c.logger.Info().
			Str("event", "host-disconnected").
			Str("connID", connID).
			Str("roomID", dep.RoomID).
			Int("viewers", len(dep.ViewerIDs)).
			Msg("host left, room torn down")
	default:
		c.sw.SendTo(ctx, dep.HostID, model.Envelope{Type: model.KindViewerLeft, ViewerID: connID})
		c.logger.Info().
			Str("event", "viewer-left").
			Str("connID", connID).
			Str("roomID", dep.RoomID).
			Msg("viewer left room")
	}

	_ = c.sw.Disconnect(connID)
	c.logger.Debug().Str("connID", connID).Msg("session deleted")
}

// RoomCount reports the number of rooms with a live host.
func (c *Coordinator) RoomCount() int {
	return c.store.RoomCount()
}

func (c *Coordinator) readLoop(ctx context.Context, connID string, rx <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-rx:
			c.Handle(ctx, connID, raw)
		}
	}
}

// Handle validates one inbound frame and dispatches it. Protocol violations
// answer the sender only; the connection always stays open.
func (c *Coordinator) Handle(ctx context.Context, connID string, raw []byte) {
	ev, perr := model.Decode(raw)
	if perr != nil {
		c.reject(ctx, connID, perr)
		return
	}

	switch ev := ev.(type) {
	case model.StartShare:
		c.handleStartShare(ctx, connID, ev)
	case model.JoinView:
		c.handleJoinView(ctx, connID, ev)
	case model.StopShare:
		c.handleStopShare(ctx, connID)
	case model.GetAvailable:
		c.handleGetAvailable(ctx, connID)
	case model.Signal:
		c.handleSignal(ctx, connID, ev)
	}
}

func (c *Coordinator) reject(ctx context.Context, connID string, perr *model.ProtocolError) {
	c.logger.Debug().
		Str("connID", connID).
		Str("reason", perr.Error()).
		Msg("message rejected")
	c.sw.SendTo(ctx, connID, model.ErrorEnvelope(perr))
}

func (c *Coordinator) handleStartShare(ctx context.Context, connID string, ev model.StartShare) {
	roomID := ev.RoomID
	if roomID == "" {
		roomID = connID
	}

	dep, orphans, err := c.store.CreateRoom(roomID, connID)
	if err != nil {
		c.logger.Error().Err(err).Str("connID", connID).Msg("start-share for unknown connection")
		return
	}
	c.notifyLeave(ctx, connID, dep)
	if len(orphans) > 0 {
		c.logger.Warn().
			Str("roomID", roomID).
			Int("orphaned", len(orphans)).
			Msg("room overwritten, prior viewers orphaned")
	}

	c.broadcast(ctx, roomID, model.Envelope{Type: model.KindRoomCreated, RoomID: roomID}, "")
	c.logger.Info().
		Str("event", "start-share").
		Str("connID", connID).
		Str("roomID", roomID).
		Msg("share started")
}

func (c *Coordinator) handleJoinView(ctx context.Context, connID string, ev model.JoinView) {
	dep, err := c.store.AddViewer(ev.RoomID, connID)
	if err != nil {
		if errors.Is(err, memory.ErrRoomNotFound) {
			c.reject(ctx, connID, model.ErrRoomNotFound)
		} else {
			c.logger.Error().Err(err).Str("connID", connID).Msg("join-view failed")
		}
		return
	}
	c.notifyLeave(ctx, connID, dep)

	c.broadcast(ctx, ev.RoomID, model.Envelope{Type: model.KindViewerJoined, ViewerID: connID}, connID)
	c.sw.SendTo(ctx, connID, model.Envelope{Type: model.KindViewJoined, RoomID: ev.RoomID})
	c.logger.Info().
		Str("event", "join-view").
		Str("connID", connID).
		Str("roomID", ev.RoomID).
		Msg("viewer joined")
}

func (c *Coordinator) handleStopShare(ctx context.Context, connID string) {
	dep, ok := c.store.StopShare(connID)
	if !ok {
		// Not a recognized host, deliberate silent no-op.
		c.logger.Debug().Str("connID", connID).Msg("stop-share from non-host ignored")
		return
	}

	for _, viewerID := range dep.ViewerIDs {
		c.sw.SendTo(ctx, viewerID, model.Envelope{Type: model.KindHostStopped})
	}
	c.logger.Info().
		Str("event", "stop-share").
		Str("connID", connID).
		Str("roomID", dep.RoomID).
		Int("viewers", len(dep.ViewerIDs)).
		Msg("share stopped")
}

func (c *Coordinator) handleGetAvailable(ctx context.Context, connID string) {
	count := c.store.RoomCount()
	c.sw.SendTo(ctx, connID, model.Envelope{Type: model.KindAvailableCount, Count: &count})
}

func (c *Coordinator) handleSignal(ctx context.Context, connID string, ev model.Signal) {
	sender, err := c.store.Lookup(connID)
	if err != nil {
		return
	}
	hasPayload := len(ev.Payload) > 0

	switch {
	case ev.TargetID != "" && hasPayload:
		target, err := c.store.Lookup(ev.TargetID)
		if err != nil || sender.RoomID == "" || target.RoomID != sender.RoomID {
			// Stale or cross-room target, routine race, drop without error.
			c.logger.Debug().
				Str("connID", connID).
				Str("targetID", ev.TargetID).
				Str("type", ev.SignalKind).
				Msg("signal dropped, target not reachable")
			return
		}
		c.sw.SendTo(ctx, ev.TargetID, model.RelayEnvelope(ev, connID))
		c.logger.Info().
			Str("event", ev.SignalKind).
			Str("connID", connID).
			Str("targetID", ev.TargetID).
			Str("roomID", sender.RoomID).
			Msg("signal relayed")

	case ev.TargetID == "" && hasPayload && sender.RoomID != "":
		c.broadcast(ctx, sender.RoomID, model.RelayEnvelope(ev, connID), connID)
		c.logger.Info().
			Str("event", ev.SignalKind).
			Str("connID", connID).
			Str("roomID", sender.RoomID).
			Msg("signal broadcast to room")

	default:
		c.reject(ctx, connID, ev.InvalidPayloadError())
	}
}

// notifyLeave delivers the notifications owed after an implicit leave (a
// connection re-assigning itself via start-share or join-view). The departing
// connection is still live, so a host departure reads as host-stopped rather
// than host-disconnected.
func (c *Coordinator) notifyLeave(ctx context.Context, connID string, dep *model.Departure) {
	switch {
	case dep == nil:
	case dep.WasHost:
		for _, viewerID := range dep.ViewerIDs {
			c.sw.SendTo(ctx, viewerID, model.Envelope{Type: model.KindHostStopped})
		}
		c.logger.Info().
			Str("event", "stop-share").
			Str("connID", connID).
			Str("roomID", dep.RoomID).
			Msg("share stopped on re-assignment")
	default:
		c.sw.SendTo(ctx, dep.HostID, model.Envelope{Type: model.KindViewerLeft, ViewerID: connID})
		c.logger.Info().
			Str("event", "viewer-left").
			Str("connID", connID).
			Str("roomID", dep.RoomID).
			Msg("viewer left on re-assignment")
	}
}

// broadcast delivers env to every member of the room except exclude. Room
// state is snapshotted first so no lock is held during delivery.
func (c *Coordinator) broadcast(ctx context.Context, roomID string, env model.Envelope, exclude string) {
	room, err := c.store.Room(roomID)
	if err != nil {
		return
	}
	if room.HostID != exclude {
		c.sw.SendTo(ctx, room.HostID, env)
	}
	for _, viewerID := range room.ViewerIDs {
		if viewerID != exclude {
			c.sw.SendTo(ctx, viewerID, env)
		}
	}
}
