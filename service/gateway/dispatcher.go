package gateway

import (
	"context"
	"strings"
	"unicode/utf8"

	"PGateway/logger"
	"PGateway/tools/decode"
	"PGateway/tools/errs"
)

// Feed subjects for persisted chat events.
const (
	feedMessageCreated  = "im.events.message.created"
	feedMessageEdited   = "im.events.message.edited"
	feedMessageDeleted  = "im.events.message.deleted"
	feedMessageReaction = "im.events.message.reaction"
)

const (
	reactionAdd    = "add"
	reactionRemove = "remove"
)

// Dispatcher translates one inbound event into zero or more outbound
// events. Every handler follows the same shape: validate, authorize,
// persist, compute fan-out, emit. A failing handler produces exactly one
// error event to the acting connection and no broadcast.
type Dispatcher struct {
	g *Gateway
}

// HandleRaw parses one client frame and dispatches it.
func (d *Dispatcher) HandleRaw(ctx context.Context, conn *Conn, raw []byte) {
	evt, err := ParseInbound(raw)
	if err != nil {
		d.g.sendTo(conn, ErrorEvent(errs.ErrValidation.WithDetail("malformed event frame")))
		return
	}
	d.Dispatch(ctx, conn, evt)
}

// Dispatch routes the event to its handler. Unknown kinds are validation
// errors, not dropped frames.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *Conn, evt *InboundEvent) {
	conn.Touch()

	var err error
	switch evt.Type {
	case EvtJoinRoom:
		err = d.handleJoinRoom(ctx, conn, evt.Payload)
	case EvtLeaveRoom:
		err = d.handleLeaveRoom(ctx, conn, evt.Payload)
	case EvtSendMessage:
		err = d.handleSendMessage(ctx, conn, evt.Payload)
	case EvtSendPrivate:
		err = d.handleSendPrivate(ctx, conn, evt.Payload)
	case EvtEditMessage:
		err = d.handleEditMessage(ctx, conn, evt.Payload)
	case EvtDeleteMessage:
		err = d.handleDeleteMessage(ctx, conn, evt.Payload)
	case EvtReaction:
		err = d.handleReaction(ctx, conn, evt.Payload)
	case EvtTypingStart:
		err = d.handleTyping(ctx, conn, evt.Payload, true)
	case EvtTypingStop:
		err = d.handleTyping(ctx, conn, evt.Payload, false)
	case EvtMarkAsRead:
		err = d.handleMarkAsRead(ctx, conn, evt.Payload)
	case EvtUpdateStatus:
		err = d.handleUpdateStatus(ctx, conn, evt.Payload)
	case EvtPinMessage:
		err = d.handlePin(ctx, conn, evt.Payload, true)
	case EvtUnpinMessage:
		err = d.handlePin(ctx, conn, evt.Payload, false)
	default:
		err = errs.ErrValidation.WithDetail("unknown event type: " + string(evt.Type))
	}

	if err != nil {
		logger.Infof("[dispatch] %s failed user=%s err=%v", evt.Type, conn.UserID, err)
		d.g.sendTo(conn, ErrorEvent(err))
	}
}

func (d *Dispatcher) handleJoinRoom(ctx context.Context, conn *Conn, payload map[string]any) error {
	p, err := decode.Map[JoinRoomPayload](payload)
	if err != nil || p.RoomID == "" {
		return errs.ErrValidation.WithDetail("join_room requires room_id")
	}

	if err := d.g.roomSvc.CanJoin(ctx, conn.UserID, p.RoomID); err != nil {
		return errs.WrapExternal(err, "room join check")
	}
	if err := d.g.roomSvc.Join(ctx, conn.UserID, p.RoomID); err != nil {
		return errs.WrapExternal(err, "room join")
	}

	d.g.rooms.Join(p.RoomID, conn.UserID)
	conn.addRoom(p.RoomID)

	// History is best effort; membership already applied durably.
	history, err := d.g.msgs.FetchPage(ctx, p.RoomID, d.g.opts.HistoryPageSize)
	if err != nil {
		logger.Warnf("[dispatch] history fetch failed room=%s err=%v", p.RoomID, err)
		history = nil
	}

	d.g.sendTo(conn, NewOutbound(EvtRoomJoined, RoomJoinedPayload{
		RoomID:  p.RoomID,
		UserID:  conn.UserID,
		History: history,
	}))
	d.g.broadcastRoom(p.RoomID, conn.UserID, NewOutbound(EvtUserJoined, RoomEventPayload{
		RoomID: p.RoomID,
		UserID: conn.UserID,
	}))
	return nil
}

func (d *Dispatcher) handleLeaveRoom(ctx context.Context, conn *Conn, payload map[string]any) error {
	p, err := decode.Map[LeaveRoomPayload](payload)
	if err != nil || p.RoomID == "" {
		return errs.ErrValidation.WithDetail("leave_room requires room_id")
	}

	// Second leave in a row is a silent no-op.
	if !d.g.rooms.Contains(p.RoomID, conn.UserID) {
		return nil
	}
	if err := d.g.roomSvc.Leave(ctx, conn.UserID, p.RoomID); err != nil {
		return errs.WrapExternal(err, "room leave")
	}

	d.g.rooms.Leave(p.RoomID, conn.UserID)
	conn.removeRoom(p.RoomID)
	if d.g.typing.Stop(RoomScope(p.RoomID), conn.UserID) {
		d.g.emitTypingStop(RoomScope(p.RoomID), conn.UserID)
	}

	d.g.sendTo(conn, NewOutbound(EvtRoomLeft, RoomEventPayload{RoomID: p.RoomID, UserID: conn.UserID}))
	d.g.broadcastRoom(p.RoomID, conn.UserID, NewOutbound(EvtUserLeft, RoomEventPayload{
		RoomID: p.RoomID,
		UserID: conn.UserID,
	}))
	return nil
}

func (d *Dispatcher) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errs.ErrValidation.WithDetail("content must not be empty")
	}
	if utf8.RuneCountInString(content) > d.g.opts.MaxContentRunes {
		return errs.ErrValidation.WithDetail("content too long")
	}
	return nil
}

func (d *Dispatcher) handleSendMessage(ctx context.Context, conn *Conn, payload map[string]any) error {
	p, err := decode.Map[SendMessagePayload](payload)
	if err != nil || p.RoomID == "" {
		return errs.ErrValidation.WithDetail("send_message requires room_id")
	}
	if err := d.validateContent(p.Content); err != nil {
		return err
	}
	if !d.g.rooms.Contains(p.RoomID, conn.UserID) {
		return errs.ErrAccessDenied.WithDetail("join the room before sending")
	}

	msg, err := d.g.msgs.Create(ctx, CreateMessageInput{
		SenderID:    conn.UserID,
		RoomID:      p.RoomID,
		Content:     p.Content,
		ContentType: p.ContentType,
		ReplyTo:     p.ReplyTo,
		Metadata:    p.Metadata,
	})
	if err != nil {
		return errs.WrapExternal(err, "create message")
	}

	// A send implies the sender stopped typing in that room.
	if d.g.typing.Stop(RoomScope(p.RoomID), conn.UserID) {
		d.g.emitTypingStop(RoomScope(p.RoomID), conn.UserID)
	}

	d.g.broadcastRoom(p.RoomID, conn.UserID, NewOutbound(EvtMessageReceived, MessagePayload{Message: *msg}))
	d.g.sendTo(conn, NewOutbound(EvtMessageSent, AckPayload{Message: *msg, ClientMsgID: p.ClientMsgID}))
	d.g.publishFeed(ctx, feedMessageCreated, msg)
	return nil
}

func (d *Dispatcher) handleSendPrivate(ctx context.Context, conn *Conn, payload map[string]any) error {
	p, err := decode.Map[SendPrivatePayload](payload)
	if err != nil || p.RecipientID == "" {
		return errs.ErrValidation.WithDetail("send_private_message requires recipient_id")
	}
	if p.RecipientID == conn.UserID {
		return errs.ErrValidation.WithDetail("cannot message yourself")
	}
	if err := d.validateContent(p.Content); err != nil {
		return err
	}

	blocked, err := d.g.users.IsBlocked(ctx, conn.UserID, p.RecipientID)
	if err != nil {
		return errs.WrapExternal(err, "block check")
	}
	if blocked {
		return errs.ErrAccessDenied.WithDetail("messaging unavailable for this user")
	}

	msg, err := d.g.msgs.Create(ctx, CreateMessageInput{
		SenderID:    conn.UserID,
		RecipientID: p.RecipientID,
		Content:     p.Content,
		ContentType: p.ContentType,
		ReplyTo:     p.ReplyTo,
		Metadata:    p.Metadata,
	})
	if err != nil {
		return errs.WrapExternal(err, "create private message")
	}

	scope := PrivateScope(conn.UserID, p.RecipientID)
	if d.g.typing.Stop(scope, conn.UserID) {
		d.g.emitTypingStop(scope, conn.UserID)
	}

	// Deliver live only when the recipient is connected; the message is
	// durable either way.
	d.g.sendToUser(p.RecipientID, NewOutbound(EvtPrivateReceived, MessagePayload{Message: *msg}))
	d.g.sendTo(conn, NewOutbound(EvtPrivateSent, AckPayload{Message: *msg, ClientMsgID: p.ClientMsgID}))
	d.g.publishFeed(ctx, feedMessageCreated, msg)
	return nil
}

// emitChange sends a message-change event to the message's audience and
// acks the actor with the same event. The audience matches "send": room
// live members minus actor, or the other private participant if online.
func (d *Dispatcher) emitChange(conn *Conn, kind EventType, msg *Message) {
	evt := NewOutbound(kind, MessagePayload{Message: *msg})
	if !msg.IsPrivate() {
		d.g.broadcastRoom(msg.RoomID, conn.UserID, evt)
	} else {
		peer := msg.RecipientID
		if peer == conn.UserID {
			peer = msg.SenderID
		}
		d.g.sendToUser(peer, evt)
	}
	d.g.sendTo(conn, evt)
}

func (d *Dispatcher) handleEditMessage(ctx context.Context, conn *Conn, payload map[string]any) error {
	p, err := decode.Map[EditMessagePayload](payload)
	if err != nil || p.MessageID == "" {
		return errs.ErrValidation.WithDetail("edit_message requires message_id")
	}
	if err := d.validateContent(p.Content); err != nil {
		return err
	}

	msg, err := d.g.msgs.Edit(ctx, conn.UserID, p.MessageID, p.Content)
	if err != nil {
		return errs.WrapExternal(err, "edit message")
	}
	d.emitChange(conn, EvtMessageEdited, msg)
	d.g.publishFeed(ctx, feedMessageEdited, msg)
	return nil
}

func (d *Dispatcher) handleDeleteMessage(ctx context.Context, conn *Conn, payload map[string]any) error {
	p, err := decode.Map[DeleteMessagePayload](payload)
	if err != nil || p.MessageID == "" {
		return errs.ErrValidation.WithDetail("delete_message requires message_id")
	}

	msg, err := d.g.msgs.Delete(ctx, conn.UserID, p.MessageID)
	if err != nil {
		return errs.WrapExternal(err, "delete message")
	}
	d.emitChange(conn, EvtMessageDeleted, msg)
	d.g.publishFeed(ctx, feedMessageDeleted, msg)
	return nil
}

func (d *Dispatcher) handleReaction(ctx context.Context, conn *Conn, payload map[string]any) error {
	p, err := decode.Map[ReactionPayload](payload)
	if err != nil || p.MessageID == "" || p.Emoji == "" {
		return errs.ErrValidation.WithDetail("message_reaction requires message_id and emoji")
	}
	if p.Action != reactionAdd && p.Action != reactionRemove {
		return errs.ErrValidation.WithDetail(`action must be "add" or "remove"`)
	}

	msg, err := d.g.msgs.ToggleReaction(ctx, conn.UserID, p.MessageID, p.Emoji, p.Action)
	if err != nil {
		return errs.WrapExternal(err, "toggle reaction")
	}
	d.emitChange(conn, EvtReaction, msg)
	d.g.publishFeed(ctx, feedMessageReaction, msg)
	return nil
}

func (d *Dispatcher) handleTyping(ctx context.Context, conn *Conn, payload map[string]any, start bool) error {
	p, err := decode.Map[TypingPayload](payload)
	if err != nil {
		return errs.ErrValidation.WithDetail("malformed typing payload")
	}
	switch {
	case p.RoomID != "" && p.RecipientID != "":
		return errs.ErrValidation.WithDetail("typing scope takes room_id or recipient_id, not both")
	case p.RoomID == "" && p.RecipientID == "":
		return errs.ErrValidation.WithDetail("typing scope requires room_id or recipient_id")
	case p.RecipientID == conn.UserID:
		return errs.ErrValidation.WithDetail("cannot type to yourself")
	}

	if p.RoomID != "" {
		if !d.g.rooms.Contains(p.RoomID, conn.UserID) {
			return errs.ErrAccessDenied.WithDetail("join the room first")
		}
		scope := RoomScope(p.RoomID)
		if start {
			d.g.typing.Start(scope, conn.UserID)
			d.g.broadcastRoom(p.RoomID, conn.UserID, NewOutbound(EvtTypingStart, TypingEventPayload{
				UserID: conn.UserID,
				RoomID: p.RoomID,
			}))
		} else if d.g.typing.Stop(scope, conn.UserID) {
			d.g.emitTypingStop(scope, conn.UserID)
		}
		return nil
	}

	scope := PrivateScope(conn.UserID, p.RecipientID)
	if start {
		d.g.typing.Start(scope, conn.UserID)
		d.g.sendToUser(p.RecipientID, NewOutbound(EvtTypingStart, TypingEventPayload{
			UserID:      conn.UserID,
			RecipientID: p.RecipientID,
		}))
	} else if d.g.typing.Stop(scope, conn.UserID) {
		d.g.emitTypingStop(scope, conn.UserID)
	}
	return nil
}

func (d *Dispatcher) handleMarkAsRead(ctx context.Context, conn *Conn, payload map[string]any) error {
	p, err := decode.Map[MarkAsReadPayload](payload)
	if err != nil || len(p.MessageIDs) == 0 {
		return errs.ErrValidation.WithDetail("mark_as_read requires message_ids")
	}
	if err := d.g.msgs.MarkRead(ctx, conn.UserID, p.MessageIDs); err != nil {
		return errs.WrapExternal(err, "mark read")
	}
	d.g.sendTo(conn, NewOutbound(EvtMessagesRead, MessagesReadPayload{MessageIDs: p.MessageIDs}))
	return nil
}

func (d *Dispatcher) handleUpdateStatus(ctx context.Context, conn *Conn, payload map[string]any) error {
	p, err := decode.Map[UpdateStatusPayload](payload)
	if err != nil || p.Status == "" {
		return errs.ErrValidation.WithDetail("update_status requires status")
	}
	if !validStatus(p.Status) {
		return errs.ErrValidation.WithDetail("unknown status: " + p.Status)
	}
	if err := d.g.presence.status(ctx, conn, p.Status, p.StatusMessage); err != nil {
		return errs.WrapExternal(err, "update status")
	}
	return nil
}

// handlePin acks the actor only; pin state is observed via history
// fetches rather than broadcast.
func (d *Dispatcher) handlePin(ctx context.Context, conn *Conn, payload map[string]any, pinned bool) error {
	p, err := decode.Map[PinPayload](payload)
	if err != nil || p.MessageID == "" {
		return errs.ErrValidation.WithDetail("pin requires message_id")
	}
	msg, err := d.g.msgs.SetPinned(ctx, conn.UserID, p.MessageID, pinned)
	if err != nil {
		return errs.WrapExternal(err, "set pinned")
	}
	d.g.sendTo(conn, NewOutbound(EvtMessagePinned, MessagePinnedPayload{
		MessageID: msg.ID,
		Pinned:    msg.Pinned,
	}))
	return nil
}
