/*
This file implements the auto-start scheduler: a short countdown when a room
fills and a longer one when it merely reaches its minimum, with race-free
cancellation when membership drops below the threshold before firing.
*/
package game

import (
	"time"
)

// Auto-start trigger reasons.
const (
	AutoStartFull  = "full"
	AutoStartReady = "ready"
)

// autoStartTimer is a scheduled countdown toward a system game start. The
// handle identifies the schedule: ticks carrying a stale handle are ignored,
// which makes cancellation race-free even when a tick was already queued.
type autoStartTimer struct {
	reason    string
	remaining int
	tick      *tickHandle
}

// evalAutoStart reconciles a waiting room's countdown with its current
// membership. Called after every membership change and after a room reset.
func (h *Hub) evalAutoStart(r *Room) {
	if r.Status != RoomWaiting {
		h.cancelAutoStart(r, "")
		return
	}

	n := len(r.Players)
	reason := ""
	seconds := 0
	switch {
	case n >= r.MaxPlayers:
		reason, seconds = AutoStartFull, h.cfg.Game.AutoStartFullSeconds
	case n >= r.MinPlayers:
		reason, seconds = AutoStartReady, h.cfg.Game.AutoStartReadySeconds
	}

	if reason == "" {
		h.cancelAutoStart(r, "Not enough players.")
		return
	}

	if r.autoStart != nil {
		if r.autoStart.reason == reason {
			// already counting down for the same trigger; joins do not
			// restart the countdown.
			return
		}
		h.cancelAutoStart(r, "")
	}

	t := &autoStartTimer{reason: reason, remaining: seconds}
	t.tick = h.startTicker(time.Second, func() {
		h.autoStartTick(r.ID, t)
	})
	r.autoStart = t

	h.broadcastRoomEvent(r, autoStartEvent{Type: evtAutoStart, SecondsLeft: seconds, Reason: reason})
}

// autoStartTick advances the countdown by one second and fires the start when
// it reaches zero. Runs on the hub's mutation stream.
func (h *Hub) autoStartTick(roomID string, t *autoStartTimer) {
	r := h.rooms[roomID]
	if r == nil || r.autoStart != t {
		// cancelled or replaced after this tick was queued.
		return
	}

	t.remaining--
	if t.remaining > 0 {
		h.broadcastRoomEvent(r, autoStartEvent{Type: evtAutoStart, SecondsLeft: t.remaining, Reason: t.reason})
		return
	}

	r.autoStart = nil
	t.tick.Cancel()

	if err := h.startGame(r, "", true); err != nil {
		// membership may have changed on the final tick
		h.evalAutoStart(r)
	}
}

// cancelAutoStart tears down a pending countdown. A non-empty reason is
// announced to the room.
func (h *Hub) cancelAutoStart(r *Room, reason string) {
	t := r.autoStart
	if t == nil {
		return
	}

	r.autoStart = nil
	t.tick.Cancel()

	if reason != "" {
		h.broadcastRoomEvent(r, autoStartCancelledEvent{Type: evtAutoStartCancelled, Reason: reason})
	}
}
