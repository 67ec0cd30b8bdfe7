package hub

import "log/slog"

// broadcastOnlineUsers pushes the full presence snapshot to every recipient.
// No diffing: the next state change re-sends the complete list, so a dropped
// push self-corrects. Snapshots must be taken under the hub mutex by the
// caller; delivery happens without it.
func (h *Hub) broadcastOnlineUsers(names []string, recipients []Conn) {
	payload, err := marshalEvent(EventOnlineUsers, names)
	if err != nil {
		h.logger.Error("Failed to marshal presence snapshot", slog.Any("error", err))
		return
	}

	for _, conn := range recipients {
		conn.Send(payload)
	}
	h.logger.Debug("Presence broadcast",
		slog.Int("online", len(names)), slog.Int("recipients", len(recipients)))
}
