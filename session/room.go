package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/santa-vitkovska/threadly/log"
	"github.com/santa-vitkovska/threadly/message"
)

const (
	defaultHeartbeat = time.Minute
)

// RoomState is the latest snapshot of an open room.
type RoomState struct {
	Messages []message.Message
	Typing   []string
	Loading  bool
}

// RoomConfig wires a Room to its collaborators. Window and Heartbeat fall
// back to defaults when zero.
type RoomConfig struct {
	Messages  MessageSource
	Typing    TypingSource
	Marker    ReadMarker
	Presence  Presence
	Window    int
	Heartbeat time.Duration
}

// Room tracks one open chat room for one user: the chronological message
// window, the set of other users typing, a mark-as-read pass over each
// snapshot, and a last-seen heartbeat while the room stays open.
type Room struct {
	roomID string
	uid    string
	marker ReadMarker

	cancel context.CancelFunc

	mu       sync.Mutex
	messages []message.Message
	typing   []string
	loading  bool
	marked   map[string]struct{}
	msgGuard *handle
	typGuard *handle

	updates chan RoomState
}

// OpenRoom subscribes to the room's messages and typing flags and starts the
// heartbeat. Callers must Close the room when leaving it.
func OpenRoom(ctx context.Context, cfg RoomConfig, roomID, uid string) *Room {
	ctx, cancel := context.WithCancel(ctx)
	r := &Room{
		roomID:  roomID,
		uid:     uid,
		marker:  cfg.Marker,
		cancel:  cancel,
		loading: true,
		marked:  make(map[string]struct{}),
		updates: make(chan RoomState, 1),
	}

	msgStream := cfg.Messages.SubscribeMessages(ctx, roomID, cfg.Window)
	r.msgGuard = newHandle(msgStream.Stop)
	go r.consumeMessages(ctx, msgStream)

	typStream := cfg.Typing.SubscribeTyping(ctx, roomID)
	r.typGuard = newHandle(typStream.Stop)
	go r.consumeTyping(typStream)

	if cfg.Presence != nil {
		interval := cfg.Heartbeat
		if interval <= 0 {
			interval = defaultHeartbeat
		}
		go r.heartbeat(ctx, cfg.Presence, interval)
	}

	return r
}

func (r *Room) consumeMessages(ctx context.Context, stream MessageStream) {
	for msgs := range stream.Updates() {
		r.mu.Lock()
		r.messages = msgs
		r.loading = false
		unread := unreadFromOthers(msgs, r.uid, r.marked)
		for _, id := range unread {
			r.marked[id] = struct{}{}
		}
		r.mu.Unlock()
		r.notify()

		for _, id := range unread {
			if err := r.marker.MarkRead(ctx, r.roomID, id, r.uid); err != nil {
				log.LoggerFromContext(ctx).Error("mark read failed",
					slog.String("roomID", r.roomID),
					slog.String("messageID", id),
					slog.String("errorMsg", err.Error()),
				)
			}
		}
	}
}

func (r *Room) consumeTyping(stream TypingStream) {
	for uids := range stream.Updates() {
		r.mu.Lock()
		r.typing = filterSelf(uids, r.uid)
		r.mu.Unlock()
		r.notify()
	}
}

func (r *Room) heartbeat(ctx context.Context, presence Presence, interval time.Duration) {
	touch := func() {
		if err := presence.Touch(ctx, r.uid); err != nil {
			log.LoggerFromContext(ctx).Error("last-seen heartbeat failed",
				slog.String("uid", r.uid),
				slog.String("errorMsg", err.Error()),
			)
		}
	}

	touch()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			touch()
		}
	}
}

// Snapshot returns the latest state.
func (r *Room) Snapshot() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomState{Messages: r.messages, Typing: r.typing, Loading: r.loading}
}

// Updates notifies with the latest state after every change, replacing any
// unconsumed value.
func (r *Room) Updates() <-chan RoomState {
	return r.updates
}

// Close releases both subscriptions and stops the heartbeat. Safe to call
// more than once.
func (r *Room) Close() {
	r.mu.Lock()
	msgGuard, typGuard := r.msgGuard, r.typGuard
	r.mu.Unlock()

	r.cancel()
	msgGuard.stop()
	typGuard.stop()
}

func (r *Room) notify() {
	st := r.Snapshot()
	for {
		select {
		case r.updates <- st:
			return
		default:
			select {
			case <-r.updates:
			default:
			}
		}
	}
}

// unreadFromOthers lists message ids authored by someone else that uid has
// not read yet, skipping ids already queued for marking.
func unreadFromOthers(msgs []message.Message, uid string, marked map[string]struct{}) []string {
	var unread []string
	for _, m := range msgs {
		if m.SenderID == uid || m.ReadByUser(uid) {
			continue
		}
		if _, ok := marked[m.ID]; ok {
			continue
		}
		unread = append(unread, m.ID)
	}
	return unread
}

// filterSelf removes the current user from a typing set: one's own
// composition must never surface as "someone is typing".
func filterSelf(uids []string, uid string) []string {
	filtered := make([]string, 0, len(uids))
	for _, id := range uids {
		if id == uid {
			continue
		}
		filtered = append(filtered, id)
	}
	return filtered
}
