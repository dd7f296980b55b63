package message

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/microcosm-cc/bluemonday"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/santa-vitkovska/threadly/contract"
	"github.com/santa-vitkovska/threadly/log"
)

const (
	// DefaultWindow is the number of messages a room subscription replays.
	DefaultWindow = 50

	// typingStaleAfter bounds how long a typing flag is honored after its
	// last refresh. A client that disconnects without retracting its flag
	// stops showing as typing once the flag ages out.
	typingStaleAfter = 30 * time.Second
)

var (
	ErrMissingSender = errors.New("message requires a sender id")
	ErrEmptyMessage  = errors.New("message requires text or attachments")
)

// Type classifies a message for rendering.
type Type string

const (
	TypeText   Type = "text"
	TypeImage  Type = "image"
	TypeFile   Type = "file"
	TypeSystem Type = "system"
)

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	URL      string
	Path     string
	MimeType string
	Name     string
	Size     int64
}

// Message is immutable once written, except ReadBy which accumulates one
// entry per reader.
type Message struct {
	ID          string
	Text        string
	SenderID    string
	Type        Type
	Attachments []Attachment
	ReadBy      map[string]time.Time
	CreatedAt   time.Time
}

// ReadByUser reports whether uid has read the message.
func (m Message) ReadByUser(uid string) bool {
	_, ok := m.ReadBy[uid]
	return ok
}

// Store manages chats/{roomId}/messages and chats/{roomId}/typing.
type Store struct {
	client    *firestore.Client
	sanitizer *bluemonday.Policy
}

func NewStore(client *firestore.Client) *Store {
	return &Store{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *Store) roomDoc(roomID string) *firestore.DocumentRef {
	return s.client.Collection(contract.RoomsCollection).Doc(roomID)
}

func (s *Store) messages(roomID string) *firestore.CollectionRef {
	return s.roomDoc(roomID).Collection(contract.MessagesCollection)
}

func (s *Store) typing(roomID string) *firestore.CollectionRef {
	return s.roomDoc(roomID).Collection(contract.TypingCollection)
}

// Send writes a new message with the sender pre-seeded in readBy, then
// updates the room's denormalized preview. The two writes are not atomic: a
// crash in between leaves the preview stale until the next message, which is
// acceptable because the preview is cosmetic.
func (s *Store) Send(ctx context.Context, roomID string, msg Message) (string, error) {
	if msg.SenderID == "" {
		return "", ErrMissingSender
	}
	text := s.sanitizeText(msg.Text)
	if text == "" && len(msg.Attachments) == 0 {
		return "", ErrEmptyMessage
	}
	if msg.Type == "" {
		msg.Type = TypeText
	}

	now := time.Now()
	ref := s.messages(roomID).NewDoc()
	_, err := ref.Create(ctx, contract.FirestoreMessage{
		Text:        text,
		SenderID:    msg.SenderID,
		Type:        string(msg.Type),
		Attachments: attachmentDocs(msg.Attachments),
		ReadBy:      map[string]time.Time{msg.SenderID: now},
		CreatedAt:   now,
	})
	if err != nil {
		return "", fmt.Errorf("sending message to room %s: %w", roomID, err)
	}

	_, err = s.roomDoc(roomID).Set(ctx, map[string]any{
		"lastMessage":   previewText(text, msg.Type),
		"lastMessageAt": now,
	}, firestore.MergeAll)
	if err != nil {
		// message is already delivered, the preview self-heals on the
		// next send
		log.LoggerFromContext(ctx).Error("room preview update failed",
			slog.String("roomID", roomID),
			slog.String("errorMsg", err.Error()),
		)
	}
	return ref.ID, nil
}

// MarkRead records that uid has read the message. Merge write on a single
// map entry, repeating it only refreshes the timestamp.
func (s *Store) MarkRead(ctx context.Context, roomID, messageID, uid string) error {
	_, err := s.messages(roomID).Doc(messageID).Set(ctx,
		map[string]any{"readBy": map[string]any{uid: time.Now()}},
		firestore.Merge(firestore.FieldPath{"readBy", uid}),
	)
	if err != nil {
		return fmt.Errorf("marking message %s/%s read: %w", roomID, messageID, err)
	}
	return nil
}

// SetTyping raises or retracts the caller's typing flag. Both directions are
// blind writes, last one wins.
func (s *Store) SetTyping(ctx context.Context, roomID, uid string, isTyping bool) error {
	ref := s.typing(roomID).Doc(uid)
	var err error
	if isTyping {
		_, err = ref.Set(ctx, contract.FirestoreTypingFlag{At: time.Now()})
	} else {
		_, err = ref.Delete(ctx)
	}
	if err != nil {
		return fmt.Errorf("setting typing flag %s/%s: %w", roomID, uid, err)
	}
	return nil
}

// History fetches the most recent window of messages once, in chronological
// order. Used by the summarizer and the export tool.
func (s *Store) History(ctx context.Context, roomID string, window int) ([]Message, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	iter := s.messages(roomID).
		OrderBy("createdAt", firestore.Desc).
		Limit(window).
		Documents(ctx)
	defer iter.Stop()

	var msgs []Message
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loading history of room %s: %w", roomID, err)
		}
		msg, err := decode(snap)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	reverseInPlace(msgs)
	return msgs, nil
}

// MessagesSubscription streams a room's message window.
type MessagesSubscription struct {
	ch   chan []Message
	once sync.Once
	stop func()
}

func (s *MessagesSubscription) Updates() <-chan []Message { return s.ch }

func (s *MessagesSubscription) Stop() { s.once.Do(s.stop) }

// Subscribe opens a live query over the last window messages, re-emitting
// the full window in chronological order on every change.
func (s *Store) Subscribe(ctx context.Context, roomID string, window int) *MessagesSubscription {
	if window <= 0 {
		window = DefaultWindow
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &MessagesSubscription{
		ch:   make(chan []Message, 1),
		stop: cancel,
	}

	go func() {
		defer close(sub.ch)

		snaps := s.messages(roomID).
			OrderBy("createdAt", firestore.Desc).
			Limit(window).
			Snapshots(ctx)
		defer snaps.Stop()

		for {
			snap, err := snaps.Next()
			if err != nil {
				if !canceled(err) {
					log.LoggerFromContext(ctx).Error("message subscription failed",
						slog.String("roomID", roomID),
						slog.String("errorMsg", err.Error()),
					)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.LoggerFromContext(ctx).Error("message snapshot read failed",
					slog.String("roomID", roomID),
					slog.String("errorMsg", err.Error()),
				)
				return
			}
			msgs := make([]Message, 0, len(docs))
			for _, d := range docs {
				msg, err := decode(d)
				if err != nil {
					log.LoggerFromContext(ctx).Error("skipping malformed message",
						slog.String("messageID", d.Ref.ID),
						slog.String("errorMsg", err.Error()),
					)
					continue
				}
				msgs = append(msgs, msg)
			}
			reverseInPlace(msgs)
			emitMessages(sub.ch, msgs)
		}
	}()

	return sub
}

// TypingSubscription streams the set of users currently typing in a room.
type TypingSubscription struct {
	ch   chan []string
	once sync.Once
	stop func()
}

func (s *TypingSubscription) Updates() <-chan []string { return s.ch }

func (s *TypingSubscription) Stop() { s.once.Do(s.stop) }

// SubscribeTyping opens a live query over the room's typing flags and emits
// the sorted id set on every change. Flags older than typingStaleAfter are
// filtered out read-side, covering clients that vanished mid-composition.
func (s *Store) SubscribeTyping(ctx context.Context, roomID string) *TypingSubscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &TypingSubscription{
		ch:   make(chan []string, 1),
		stop: cancel,
	}

	go func() {
		defer close(sub.ch)

		snaps := s.typing(roomID).Snapshots(ctx)
		defer snaps.Stop()

		for {
			snap, err := snaps.Next()
			if err != nil {
				if !canceled(err) {
					log.LoggerFromContext(ctx).Error("typing subscription failed",
						slog.String("roomID", roomID),
						slog.String("errorMsg", err.Error()),
					)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.LoggerFromContext(ctx).Error("typing snapshot read failed",
					slog.String("roomID", roomID),
					slog.String("errorMsg", err.Error()),
				)
				return
			}
			flags := make(map[string]time.Time, len(docs))
			for _, d := range docs {
				var flag contract.FirestoreTypingFlag
				if err := d.DataTo(&flag); err != nil {
					continue
				}
				flags[d.Ref.ID] = flag.At
			}
			emitTyping(sub.ch, activeTypists(flags, time.Now()))
		}
	}()

	return sub
}

// canceled reports whether err is the subscription's own teardown.
func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled
}

// activeTypists filters out flags that aged past typingStaleAfter and
// returns the remaining ids sorted.
func activeTypists(flags map[string]time.Time, now time.Time) []string {
	uids := make([]string, 0, len(flags))
	for uid, at := range flags {
		if at.IsZero() || now.Sub(at) > typingStaleAfter {
			continue
		}
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// sanitizeText strips any HTML markup from user input, keeping the plain
// text content.
func (s *Store) sanitizeText(text string) string {
	return html.UnescapeString(s.sanitizer.Sanitize(text))
}

// previewText is the denormalized room preview for a message.
func previewText(text string, t Type) string {
	if text != "" {
		return text
	}
	switch t {
	case TypeImage:
		return "[image]"
	case TypeFile:
		return "[file]"
	}
	return text
}

func decode(snap *firestore.DocumentSnapshot) (Message, error) {
	var doc contract.FirestoreMessage
	if err := snap.DataTo(&doc); err != nil {
		return Message{}, fmt.Errorf("decoding message %s: %w", snap.Ref.ID, err)
	}
	msg := Message{
		ID:        snap.Ref.ID,
		Text:      doc.Text,
		SenderID:  doc.SenderID,
		Type:      Type(doc.Type),
		ReadBy:    doc.ReadBy,
		CreatedAt: doc.CreatedAt,
	}
	if msg.Type == "" {
		msg.Type = TypeText
	}
	for _, a := range doc.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{
			URL:      a.URL,
			Path:     a.Path,
			MimeType: a.MimeType,
			Name:     a.Name,
			Size:     a.Size,
		})
	}
	return msg, nil
}

func attachmentDocs(attachments []Attachment) []contract.FirestoreAttachment {
	if len(attachments) == 0 {
		return nil
	}
	docs := make([]contract.FirestoreAttachment, 0, len(attachments))
	for _, a := range attachments {
		docs = append(docs, contract.FirestoreAttachment{
			URL:      a.URL,
			Path:     a.Path,
			MimeType: a.MimeType,
			Name:     a.Name,
			Size:     a.Size,
		})
	}
	return docs
}

func reverseInPlace(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func emitMessages(ch chan []Message, msgs []Message) {
	for {
		select {
		case ch <- msgs:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func emitTyping(ch chan []string, uids []string) {
	for {
		select {
		case ch <- uids:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
