package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/santa-vitkovska/threadly/contract"
	"github.com/santa-vitkovska/threadly/log"
)

const roomIDSeparator = "_"

// ErrNotEnoughMembers is returned before any network call when a room is
// requested with fewer than two distinct members.
var ErrNotEnoughMembers = errors.New("a room requires at least two distinct members")

// Room is a chat between a fixed set of member ids.
type Room struct {
	ID            string
	Members       []string
	LastMessage   string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

// Store manages chats/{roomId} documents.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// RoomID derives the deterministic room id for a member set: distinct ids,
// sorted lexicographically, joined with an underscore. Order-independent.
func RoomID(memberIDs []string) (string, error) {
	members := normalizeMembers(memberIDs)
	if len(members) < 2 {
		return "", ErrNotEnoughMembers
	}
	return strings.Join(members, roomIDSeparator), nil
}

func normalizeMembers(memberIDs []string) []string {
	seen := make(map[string]struct{}, len(memberIDs))
	var members []string
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// CreateOrGetRoom returns the room id for the member set, creating the room
// document inside a transaction if it does not exist yet. Concurrent first
// contact from both sides resolves to a single create.
func (s *Store) CreateOrGetRoom(ctx context.Context, memberIDs []string) (string, error) {
	members := normalizeMembers(memberIDs)
	if len(members) < 2 {
		return "", ErrNotEnoughMembers
	}
	roomID := strings.Join(members, roomIDSeparator)
	ref := s.client.Collection(contract.RoomsCollection).Doc(roomID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return tx.Create(ref, contract.FirestoreRoom{
				Members:   members,
				CreatedAt: time.Now(),
			})
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("creating room %s (code %s): %w", roomID, status.Code(err), err)
	}
	return roomID, nil
}

// Room fetches a single room document.
func (s *Store) Room(ctx context.Context, roomID string) (*Room, error) {
	snap, err := s.client.Collection(contract.RoomsCollection).Doc(roomID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching room %s: %w", roomID, err)
	}
	var doc contract.FirestoreRoom
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding room %s: %w", roomID, err)
	}
	room := fromDoc(roomID, doc)
	return &room, nil
}

// RoomsSubscription streams the current user's room list. Updates carries
// the latest ordered list, the channel is closed when the subscription ends.
type RoomsSubscription struct {
	ch   chan []Room
	once sync.Once
	stop func()
}

func (s *RoomsSubscription) Updates() <-chan []Room { return s.ch }

// Stop releases the underlying listener. Safe to call more than once.
func (s *RoomsSubscription) Stop() {
	s.once.Do(s.stop)
}

// SubscribeRooms opens a live query over the rooms containing uid. Every
// upstream snapshot re-emits the full list sorted by recency. An upstream
// error emits an empty list and ends the stream: the caller sees "no rooms",
// which is indistinguishable from a permissions misconfiguration by design.
func (s *Store) SubscribeRooms(ctx context.Context, uid string) *RoomsSubscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &RoomsSubscription{
		ch:   make(chan []Room, 1),
		stop: cancel,
	}

	go func() {
		defer close(sub.ch)

		snaps := s.client.Collection(contract.RoomsCollection).
			Where("members", "array-contains", uid).
			Snapshots(ctx)
		defer snaps.Stop()

		for {
			snap, err := snaps.Next()
			if err != nil {
				if !canceled(err) {
					log.LoggerFromContext(ctx).Error("rooms subscription failed",
						slog.String("uid", uid),
						slog.String("errorMsg", err.Error()),
					)
					emitLatest(sub.ch, []Room{})
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.LoggerFromContext(ctx).Error("rooms snapshot read failed",
					slog.String("uid", uid),
					slog.String("errorMsg", err.Error()),
				)
				emitLatest(sub.ch, []Room{})
				return
			}
			rooms := make([]Room, 0, len(docs))
			for _, d := range docs {
				var doc contract.FirestoreRoom
				if err := d.DataTo(&doc); err != nil {
					log.LoggerFromContext(ctx).Error("skipping malformed room",
						slog.String("roomID", d.Ref.ID),
						slog.String("errorMsg", err.Error()),
					)
					continue
				}
				rooms = append(rooms, fromDoc(d.Ref.ID, doc))
			}
			SortByRecency(rooms)
			emitLatest(sub.ch, rooms)
		}
	}()

	return sub
}

// SortByRecency orders rooms by lastMessageAt descending. Rooms that never
// received a message (zero timestamp) sort last, ties break on id so the
// order is stable across snapshots.
func SortByRecency(rooms []Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i].LastMessageAt, rooms[j].LastMessageAt
		switch {
		case a.IsZero() && b.IsZero():
			return rooms[i].ID < rooms[j].ID
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		case !a.Equal(b):
			return a.After(b)
		}
		return rooms[i].ID < rooms[j].ID
	})
}

// canceled reports whether err is the subscription's own teardown.
func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled
}

// emitLatest delivers rooms without blocking, replacing an unconsumed value.
// Consumers always observe the most recent snapshot.
func emitLatest(ch chan []Room, rooms []Room) {
	for {
		select {
		case ch <- rooms:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func fromDoc(id string, doc contract.FirestoreRoom) Room {
	return Room{
		ID:            id,
		Members:       doc.Members,
		LastMessage:   doc.LastMessage,
		LastMessageAt: doc.LastMessageAt,
		CreatedAt:     doc.CreatedAt,
	}
}
