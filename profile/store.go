package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/santa-vitkovska/threadly/contract"
	"github.com/santa-vitkovska/threadly/log"
)

// prefixUpperBound closes the range of a prefix query, it is the highest
// code point Firestore orders after any string with the given prefix.
const prefixUpperBound = "\uf8ff"

const defaultSearchLimit = 20

// Profile is a user's public profile document.
type Profile struct {
	UID         string
	DisplayName string
	Avatar      string
	Status      string
	LastSeen    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store reads and writes users/{uid} documents.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) doc(uid string) *firestore.DocumentRef {
	return s.client.Collection(contract.UsersCollection).Doc(uid)
}

// Get fetches a profile. Missing documents and permission errors both yield
// (nil, nil): a caller rendering a name or avatar degrades to a placeholder
// rather than failing the whole view. Permission errors are logged.
func (s *Store) Get(ctx context.Context, uid string) (*Profile, error) {
	snap, err := s.doc(uid).Get(ctx)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return nil, nil
		case codes.PermissionDenied:
			log.LoggerFromContext(ctx).Error("profile read denied",
				slog.String("uid", uid),
				slog.String("errorMsg", err.Error()),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("fetching profile %s: %w", uid, err)
	}

	var doc contract.FirestoreUser
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding profile %s: %w", uid, err)
	}
	return fromDoc(uid, doc), nil
}

// Create writes the initial profile on first sign-in. Overwriting an existing
// document with the same uid is harmless, the host calls this on every
// sign-up completion.
func (s *Store) Create(ctx context.Context, uid string, p Profile) error {
	now := time.Now()
	_, err := s.doc(uid).Set(ctx, contract.FirestoreUser{
		DisplayName: p.DisplayName,
		Avatar:      p.Avatar,
		Status:      p.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("creating profile %s: %w", uid, err)
	}
	return nil
}

// Update mutates the user-editable fields and bumps updatedAt. Only the
// owning user may call this, enforced by the backend security rules.
func (s *Store) Update(ctx context.Context, uid string, p Profile) error {
	_, err := s.doc(uid).Set(ctx, map[string]any{
		"displayName": p.DisplayName,
		"avatar":      p.Avatar,
		"status":      p.Status,
		"updatedAt":   time.Now(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("updating profile %s: %w", uid, err)
	}
	return nil
}

// Touch refreshes the last-seen heartbeat. Blind overwrite, last write wins.
func (s *Store) Touch(ctx context.Context, uid string) error {
	_, err := s.doc(uid).Set(ctx, map[string]any{
		"lastSeen": time.Now(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("touching profile %s: %w", uid, err)
	}
	return nil
}

// SearchByName runs a prefix search over display names. An empty term
// returns an empty result without issuing a query.
func (s *Store) SearchByName(ctx context.Context, term string, limit int) ([]Profile, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	iter := s.client.Collection(contract.UsersCollection).
		Where("displayName", ">=", term).
		Where("displayName", "<", term+prefixUpperBound).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var profiles []Profile
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("searching profiles: %w", err)
		}
		var doc contract.FirestoreUser
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding profile %s: %w", snap.Ref.ID, err)
		}
		profiles = append(profiles, *fromDoc(snap.Ref.ID, doc))
	}
	return profiles, nil
}

func fromDoc(uid string, doc contract.FirestoreUser) *Profile {
	return &Profile{
		UID:         uid,
		DisplayName: doc.DisplayName,
		Avatar:      doc.Avatar,
		Status:      doc.Status,
		LastSeen:    doc.LastSeen,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
