package gateway

import (
	"context"
	"time"

	"PGateway/logger"
)

// Allowed user status values for update_status.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

func validStatus(s string) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Presence announces connect, disconnect and status changes. Presence
// persistence failures degrade to log lines; live announcements still go
// out so connected peers stay consistent with the registry.
type Presence struct {
	g *Gateway
}

// online persists the status, announces the user globally and to each
// live-joined room, and pushes the current online snapshot to the new
// connection only.
func (p *Presence) online(ctx context.Context, conn *Conn) {
	if err := p.g.users.SetOnline(ctx, conn.UserID, p.g.opts.NodeID); err != nil {
		logger.Warnf("[presence] persist online failed user=%s err=%v", conn.UserID, err)
	}

	p.g.broadcastAll(conn.UserID, NewOutbound(EvtUserOnline, PresencePayload{UserID: conn.UserID}))
	for _, roomID := range conn.JoinedRooms() {
		p.g.broadcastRoom(roomID, conn.UserID, NewOutbound(EvtUserOnline, PresencePayload{
			UserID: conn.UserID,
			RoomID: roomID,
		}))
	}

	others := make([]string, 0)
	for _, u := range p.g.reg.ListOnline() {
		if u != conn.UserID {
			others = append(others, u)
		}
	}
	p.g.sendTo(conn, NewOutbound(EvtOnlineUsers, OnlineUsersPayload{Users: others}))
}

// offline persists last-seen and announces the user globally and to the
// rooms the connection had joined, captured before index cleanup.
func (p *Presence) offline(ctx context.Context, conn *Conn, roomsBefore []string) {
	if err := p.g.users.SetOffline(ctx, conn.UserID, time.Now()); err != nil {
		logger.Warnf("[presence] persist offline failed user=%s err=%v", conn.UserID, err)
	}

	p.g.broadcastAll(conn.UserID, NewOutbound(EvtUserOffline, PresencePayload{UserID: conn.UserID}))
	for _, roomID := range roomsBefore {
		p.g.broadcastRoom(roomID, conn.UserID, NewOutbound(EvtUserOffline, PresencePayload{
			UserID: conn.UserID,
			RoomID: roomID,
		}))
		p.g.broadcastRoom(roomID, conn.UserID, NewOutbound(EvtUserLeft, RoomEventPayload{
			RoomID: roomID,
			UserID: conn.UserID,
		}))
	}
}

// status persists a status change and announces it to the user's
// live-joined rooms only, never globally.
func (p *Presence) status(ctx context.Context, conn *Conn, status, statusMessage string) error {
	if err := p.g.users.SetStatus(ctx, conn.UserID, status, statusMessage); err != nil {
		return err
	}
	for _, roomID := range conn.JoinedRooms() {
		p.g.broadcastRoom(roomID, conn.UserID, NewOutbound(EvtUserStatus, StatusPayload{
			UserID:        conn.UserID,
			Status:        status,
			StatusMessage: statusMessage,
			RoomID:        roomID,
		}))
	}
	return nil
}
