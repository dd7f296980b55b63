package session

import (
	"context"
	"sync"

	"github.com/santa-vitkovska/threadly/auth"
	"github.com/santa-vitkovska/threadly/chat"
)

// RoomListState is the latest room-list snapshot exposed to the view layer.
type RoomListState struct {
	Rooms   []chat.Room
	Loading bool
}

// RoomList tracks the current user's rooms. It is idle until a user id is
// set, loading while the first snapshot is in flight, and live afterwards.
// Setting a new user id fully replaces the prior subscription; clearing the
// id (sign-out) tears it down and returns to idle.
type RoomList struct {
	source RoomSource

	mu      sync.Mutex
	stream  RoomStream
	guard   *handle
	rooms   []chat.Room
	loading bool
	closed  bool

	updates chan RoomListState
}

func NewRoomList(source RoomSource) *RoomList {
	return &RoomList{
		source:  source,
		updates: make(chan RoomListState, 1),
	}
}

// Apply maps a host auth snapshot onto the list: loading states are ignored
// (no reads while the host session is unresolved), nil user clears, anything
// else subscribes for that user.
func (l *RoomList) Apply(ctx context.Context, st auth.State) {
	if st.Loading {
		return
	}
	if st.User == nil {
		l.SetUser(ctx, "")
		return
	}
	l.SetUser(ctx, st.User.UID)
}

// SetUser swaps the active subscription to the given user id. An empty id
// means signed out. The previous subscription, if any, is always released
// before the new one opens; there is no diffing of old vs new.
func (l *RoomList) SetUser(ctx context.Context, uid string) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.guard.stop()
	l.stream = nil
	l.guard = nil
	l.rooms = nil

	if uid == "" {
		l.loading = false
		l.mu.Unlock()
		l.notify()
		return
	}

	stream := l.source.SubscribeRooms(ctx, uid)
	l.stream = stream
	l.guard = newHandle(stream.Stop)
	l.loading = true
	l.mu.Unlock()
	l.notify()

	go l.consume(stream)
}

func (l *RoomList) consume(stream RoomStream) {
	for rooms := range stream.Updates() {
		l.mu.Lock()
		if l.stream != stream {
			// superseded by a later SetUser, drop the update
			l.mu.Unlock()
			return
		}
		l.rooms = rooms
		l.loading = false
		l.mu.Unlock()
		l.notify()
	}
}

// Snapshot returns the latest state.
func (l *RoomList) Snapshot() RoomListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return RoomListState{Rooms: l.rooms, Loading: l.loading}
}

// Updates notifies with the latest state after every change, replacing any
// unconsumed value so slow consumers only see the newest snapshot.
func (l *RoomList) Updates() <-chan RoomListState {
	return l.updates
}

// Close releases the active subscription. The list is unusable afterwards.
func (l *RoomList) Close() {
	l.mu.Lock()
	l.closed = true
	guard := l.guard
	l.stream = nil
	l.guard = nil
	l.mu.Unlock()
	guard.stop()
}

func (l *RoomList) notify() {
	st := l.Snapshot()
	for {
		select {
		case l.updates <- st:
			return
		default:
			select {
			case <-l.updates:
			default:
			}
		}
	}
}
