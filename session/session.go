// Package session owns listener lifecycle for the view layer: it turns the
// stores' raw subscriptions into mutex-guarded state machines with
// deterministic teardown. Every subscription acquired here is released
// exactly once, on close or whenever its key (user id, room id) changes.
package session

import (
	"context"
	"sync"

	"github.com/santa-vitkovska/threadly/chat"
	"github.com/santa-vitkovska/threadly/message"
)

// RoomStream is a live room-list subscription as seen by the session layer.
type RoomStream interface {
	Updates() <-chan []chat.Room
	Stop()
}

// RoomSource opens room-list subscriptions. *chat.Store satisfies it through
// a SourceFunc adapter in the root package.
type RoomSource interface {
	SubscribeRooms(ctx context.Context, uid string) RoomStream
}

type RoomSourceFunc func(ctx context.Context, uid string) RoomStream

func (f RoomSourceFunc) SubscribeRooms(ctx context.Context, uid string) RoomStream {
	return f(ctx, uid)
}

// MessageStream is a live message-window subscription.
type MessageStream interface {
	Updates() <-chan []message.Message
	Stop()
}

// MessageSource opens message subscriptions for a room.
type MessageSource interface {
	SubscribeMessages(ctx context.Context, roomID string, window int) MessageStream
}

type MessageSourceFunc func(ctx context.Context, roomID string, window int) MessageStream

func (f MessageSourceFunc) SubscribeMessages(ctx context.Context, roomID string, window int) MessageStream {
	return f(ctx, roomID, window)
}

// TypingStream is a live typing-flag subscription.
type TypingStream interface {
	Updates() <-chan []string
	Stop()
}

// TypingSource opens typing subscriptions for a room.
type TypingSource interface {
	SubscribeTyping(ctx context.Context, roomID string) TypingStream
}

type TypingSourceFunc func(ctx context.Context, roomID string) TypingStream

func (f TypingSourceFunc) SubscribeTyping(ctx context.Context, roomID string) TypingStream {
	return f(ctx, roomID)
}

// ReadMarker records read receipts, *message.Store satisfies it.
type ReadMarker interface {
	MarkRead(ctx context.Context, roomID, messageID, uid string) error
}

// Presence refreshes the current user's last-seen heartbeat,
// *profile.Store satisfies it.
type Presence interface {
	Touch(ctx context.Context, uid string) error
}

// handle guards a release function so it runs exactly once regardless of how
// many exit paths reach it.
type handle struct {
	once    sync.Once
	release func()
}

func newHandle(release func()) *handle {
	return &handle{release: release}
}

func (h *handle) stop() {
	if h == nil {
		return
	}
	h.once.Do(h.release)
}
