// Package threadly is an embeddable chat client backed by Cloud Firestore,
// Cloud Storage and Firebase Authentication. A host application constructs a
// Client with an adapter exposing its own auth state and mounts the room
// list and room sessions on top of it; all realtime behavior is delegated to
// Firestore's snapshot listeners.
package threadly

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/firestore"

	"github.com/santa-vitkovska/threadly/attachment"
	"github.com/santa-vitkovska/threadly/auth"
	"github.com/santa-vitkovska/threadly/chat"
	"github.com/santa-vitkovska/threadly/message"
	"github.com/santa-vitkovska/threadly/profile"
	"github.com/santa-vitkovska/threadly/session"
	"github.com/santa-vitkovska/threadly/summarize"
)

// ErrNotSignedIn is returned by operations that need a resolved identity.
var ErrNotSignedIn = errors.New("no signed-in user")

// Config configures a Client. Adapter is required; everything else has a
// working default.
type Config struct {
	// ProjectID of the backing GCP project. Discovered from the metadata
	// server when empty.
	ProjectID string

	// Adapter exposes the host application's auth state.
	Adapter auth.Adapter

	// Window is the message subscription size, message.DefaultWindow when 0.
	Window int

	// Heartbeat is the last-seen refresh interval while a room is open.
	Heartbeat time.Duration

	// DisableUploads skips Cloud Storage setup for hosts without a bucket.
	DisableUploads bool
}

// Client bundles the stores and the session layer. One Client per process is
// typical; sessions derived from it are cheap and scoped to views.
type Client struct {
	Profiles   *profile.Store
	Rooms      *chat.Store
	Messages   *message.Store
	Uploader   *attachment.Uploader
	Summarizer *summarize.Summarizer

	fs        *firestore.Client
	adapter   auth.Adapter
	window    int
	heartbeat time.Duration
}

// New connects the client to the backing project.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("an auth adapter is required")
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		var err error
		projectID, err = metadata.ProjectIDWithContext(ctx)
		if err != nil {
			return nil, err
		}
	}

	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var uploader *attachment.Uploader
	if !cfg.DisableUploads {
		uploader, err = attachment.NewUploader(ctx)
		if err != nil {
			fs.Close()
			return nil, err
		}
	}

	summarizer, err := summarize.New()
	if err != nil {
		fs.Close()
		return nil, err
	}

	return &Client{
		Profiles:   profile.NewStore(fs),
		Rooms:      chat.NewStore(fs),
		Messages:   message.NewStore(fs),
		Uploader:   uploader,
		Summarizer: summarizer,
		fs:         fs,
		adapter:    cfg.Adapter,
		window:     cfg.Window,
		heartbeat:  cfg.Heartbeat,
	}, nil
}

// RoomList mounts a room-list session seeded with the adapter's current auth
// state. The host re-applies state changes via Apply on sign-in/sign-out.
func (c *Client) RoomList(ctx context.Context) *session.RoomList {
	l := session.NewRoomList(session.RoomSourceFunc(
		func(ctx context.Context, uid string) session.RoomStream {
			return c.Rooms.SubscribeRooms(ctx, uid)
		},
	))
	l.Apply(ctx, c.adapter.State())
	return l
}

// OpenRoom mounts a room session for the signed-in user.
func (c *Client) OpenRoom(ctx context.Context, roomID string) (*session.Room, error) {
	st := c.adapter.State()
	if !st.Ready() {
		return nil, ErrNotSignedIn
	}

	cfg := session.RoomConfig{
		Messages: session.MessageSourceFunc(
			func(ctx context.Context, roomID string, window int) session.MessageStream {
				return c.Messages.Subscribe(ctx, roomID, window)
			},
		),
		Typing: session.TypingSourceFunc(
			func(ctx context.Context, roomID string) session.TypingStream {
				return c.Messages.SubscribeTyping(ctx, roomID)
			},
		),
		Marker:    c.Messages,
		Presence:  c.Profiles,
		Window:    c.window,
		Heartbeat: c.heartbeat,
	}
	return session.OpenRoom(ctx, cfg, roomID, st.User.UID), nil
}

// Summarize runs the /summarize command over the room's recent history.
func (c *Client) Summarize(ctx context.Context, roomID string) (string, error) {
	msgs, err := c.Messages.History(ctx, roomID, summarize.Window)
	if err != nil {
		return "", err
	}
	return c.Summarizer.Summarize(ctx, msgs)
}

// Close releases the Firestore connection. Sessions must be closed first.
func (c *Client) Close() error {
	return c.fs.Close()
}
