package _switch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saiful3278/Screenshare-backend/model"
)

const (
	defaultFwdTimout = time.Second
)

type endpoint struct {
	wire   model.Wire
	cancel context.CancelFunc
}

// Switch is the downlink delivery fabric: it maps connection ids to their
// wires and performs fire-and-forget sends with a bounded timeout so a dead
// peer cannot stall the coordinator. Room membership is not its concern.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]endpoint
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]endpoint),
	}
}

// Connect attaches a connection's wire to the fabric. The cancel func is the
// transport-level kill switch used by Close.
func (sw *Switch) Connect(connID string, wire model.Wire, cancel context.CancelFunc) error {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("connID", connID).
			Msg("endpoint connected")
	}()

	sw.fwd[connID] = endpoint{wire: wire, cancel: cancel}
	return nil
}

// Disconnect detaches a connection from the fabric.
func (sw *Switch) Disconnect(connID string) error {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("connID", connID).
			Msg("endpoint disconnected")
	}()

	delete(sw.fwd, connID)
	return nil
}

// SendTo delivers one envelope to a connection. Unknown destinations and
// send timeouts are dropped, not retried.
func (sw *Switch) SendTo(ctx context.Context, connID string, env model.Envelope) bool {
	sw.mx.RLock()
	ep, ok := sw.fwd[connID]
	sw.mx.RUnlock()

	logger := sw.logger.With().
		Str("dst", connID).
		Str("type", env.Type).Logger()

	if !ok {
		logger.Debug().Msg("cannot forward, dst not found")
		return false
	}

	var sent bool
	tCh := time.NewTimer(defaultFwdTimout)
	select {
	case <-ctx.Done():
	case <-tCh.C:
		logger.Error().Msg("dead endpoint")
	case ep.wire.TX <- env:
		logger.Debug().Msg("message is forwarded")
		sent = true
	}
	tCh.Stop()
	return sent
}

// Close terminates a connection at the transport level by canceling its
// session context. The transport notices and runs its normal teardown.
func (sw *Switch) Close(connID string) {
	sw.mx.RLock()
	ep, ok := sw.fwd[connID]
	sw.mx.RUnlock()

	if ok {
		ep.cancel()
		sw.logger.Debug().
			Str("connID", connID).
			Msg("endpoint close requested")
	}
}
