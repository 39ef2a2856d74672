package gateway

import (
	"context"
	"time"

	"PGateway/logger"
	"PGateway/tools/errs"
	"PGateway/tools/ids"
)

// Options tunes the gateway aggregate. Zero values fall back to the
// defaults used in production.
type Options struct {
	NodeID          string
	TypingTimeout   time.Duration
	SweepInterval   time.Duration
	HistoryPageSize int
	SendQueueSize   int
	FanoutWorkers   int
	FanoutQueue     int
	MaxContentRunes int
}

func (o *Options) norm() {
	if o.NodeID == "" {
		o.NodeID = "gateway_1"
	}
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = 10 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
	if o.HistoryPageSize <= 0 {
		o.HistoryPageSize = 50
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.FanoutQueue <= 0 {
		o.FanoutQueue = 1024
	}
	if o.MaxContentRunes <= 0 {
		o.MaxContentRunes = 4000
	}
}

// Gateway owns the live connection registry, the room membership index
// and the typing tracker, and funnels every mutation through the
// dispatcher and presence broadcaster. Instantiate one per process; tests
// instantiate isolated ones.
type Gateway struct {
	opts Options

	reg    *Registry
	rooms  *RoomIndex
	typing *TypingTracker
	fan    *Fanout

	msgs    MessageService
	roomSvc RoomService
	users   UserService
	feed    EventFeed

	disp     *Dispatcher
	presence *Presence
}

func New(opts Options, msgs MessageService, roomSvc RoomService, users UserService, feed EventFeed) *Gateway {
	opts.norm()
	g := &Gateway{
		opts:    opts,
		reg:     NewRegistry(),
		rooms:   NewRoomIndex(),
		typing:  NewTypingTracker(opts.TypingTimeout),
		fan:     NewFanout(opts.FanoutWorkers, opts.FanoutQueue),
		msgs:    msgs,
		roomSvc: roomSvc,
		users:   users,
		feed:    feed,
	}
	g.disp = &Dispatcher{g: g}
	g.presence = &Presence{g: g}
	return g
}

func (g *Gateway) Registry() *Registry     { return g.reg }
func (g *Gateway) Rooms() *RoomIndex       { return g.rooms }
func (g *Gateway) Typing() *TypingTracker  { return g.typing }
func (g *Gateway) Dispatcher() *Dispatcher { return g.disp }

// Connect registers an authenticated transport for userID under connID,
// evicting any previous connection for the same identity, seeds live
// room membership from persisted membership, and announces presence. An
// empty connID gets a generated one; transports that label themselves
// with the id should generate it up front and pass it in, so the label
// is final before the sink can receive traffic.
func (g *Gateway) Connect(ctx context.Context, userID, connID string, sink Sink) (*Conn, error) {
	if connID == "" {
		connID = ids.GenerateString()
	}
	conn, evicted := g.reg.Register(userID, connID, sink)
	if evicted != nil {
		// The newer connection silently supersedes; no offline presence.
		g.cleanupIndexes(evicted)
		evicted.Sink.Close()
		logger.Infof("[gateway] evicted stale connection user=%s conn=%s", userID, evicted.ID)
	}

	persisted, err := g.roomSvc.RoomsOf(ctx, userID)
	if err != nil {
		g.reg.Unregister(conn)
		return nil, errs.WrapExternal(err, "load room membership")
	}
	for _, roomID := range persisted {
		g.rooms.Join(roomID, userID)
		conn.addRoom(roomID)
	}

	g.presence.online(ctx, conn)
	return conn, nil
}

// Disconnect fully clears a connection from every index and announces
// offline presence. Idempotent: duplicate or stale disconnect signals
// (a disconnect racing a newer connection) are silent no-ops.
func (g *Gateway) Disconnect(ctx context.Context, conn *Conn) {
	if conn == nil {
		return
	}
	roomsBefore := conn.JoinedRooms()
	if !g.reg.Unregister(conn) {
		conn.Sink.Close()
		return
	}
	g.cleanupIndexes(conn)
	g.presence.offline(ctx, conn, roomsBefore)
	conn.Sink.Close()
}

// cleanupIndexes removes a connection's traces from the room index and
// typing tracker, emitting typing-stop where sessions existed.
func (g *Gateway) cleanupIndexes(conn *Conn) {
	for _, scope := range g.typing.ClearUser(conn.UserID) {
		g.emitTypingStop(scope, conn.UserID)
	}
	for _, roomID := range conn.JoinedRooms() {
		g.rooms.Leave(roomID, conn.UserID)
		conn.removeRoom(roomID)
	}
}

// RunSweeper prunes expired typing sessions until ctx is done.
func (g *Gateway) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(g.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.SweepOnce()
		}
	}
}

// SweepOnce expires overdue typing sessions and notifies each audience.
func (g *Gateway) SweepOnce() {
	for _, e := range g.typing.Sweep() {
		g.emitTypingStop(e.Scope, e.UserID)
	}
}

// ---- emission ----

func (g *Gateway) sendTo(conn *Conn, evt *OutboundEvent) {
	if conn == nil {
		return
	}
	conn.Sink.Push(evt.Encode())
}

// sendToUser delivers to the user's live connection, if any. Absence
// means "deliver nothing live"; durability is persistence's concern.
func (g *Gateway) sendToUser(userID string, evt *OutboundEvent) bool {
	conn, ok := g.reg.Lookup(userID)
	if !ok {
		return false
	}
	g.sendTo(conn, evt)
	return true
}

// broadcastRoom fans an event out to the room's live members, minus the
// excluded identity (usually the actor).
func (g *Gateway) broadcastRoom(roomID, exclude string, evt *OutboundEvent) {
	members := g.rooms.LiveMembers(roomID)
	sinks := make([]Sink, 0, len(members))
	for _, u := range members {
		if u == exclude {
			continue
		}
		if conn, ok := g.reg.Lookup(u); ok {
			sinks = append(sinks, conn.Sink)
		}
	}
	g.fan.Broadcast(sinks, evt.Encode())
}

// broadcastAll fans an event out to every live connection except the
// excluded identity.
func (g *Gateway) broadcastAll(exclude string, evt *OutboundEvent) {
	conns := g.reg.Conns()
	sinks := make([]Sink, 0, len(conns))
	for _, c := range conns {
		if c.UserID == exclude {
			continue
		}
		sinks = append(sinks, c.Sink)
	}
	g.fan.Broadcast(sinks, evt.Encode())
}

// emitTypingStop notifies a scope's audience that the typist stopped,
// reconstructing the audience from the scope key.
func (g *Gateway) emitTypingStop(scope, typist string) {
	roomID, peerA, peerB := SplitScope(scope)
	if roomID != "" {
		g.broadcastRoom(roomID, typist, NewOutbound(EvtTypingStop, TypingEventPayload{
			UserID: typist,
			RoomID: roomID,
		}))
		return
	}
	peer := peerA
	if typist == peerA {
		peer = peerB
	}
	if peer == "" {
		return
	}
	g.sendToUser(peer, NewOutbound(EvtTypingStop, TypingEventPayload{
		UserID:      typist,
		RecipientID: peer,
	}))
}

// publishFeed mirrors a persisted event onto the downstream feed,
// best effort.
func (g *Gateway) publishFeed(ctx context.Context, subject string, v any) {
	if g.feed == nil {
		return
	}
	if err := g.feed.Publish(ctx, subject, v); err != nil {
		logger.Warnf("[gateway] event feed publish failed subject=%s err=%v", subject, err)
	}
}
