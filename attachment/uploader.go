package attachment

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
)

const publicURLBase = "https://storage.googleapis.com"

// Descriptor identifies an uploaded attachment. Produced once at upload
// time, immutable afterwards.
type Descriptor struct {
	URL      string
	Path     string
	MimeType string
	Name     string
	Size     int64
}

// Uploader writes attachment objects under a room-scoped path in the
// project's default storage bucket.
type Uploader struct {
	bucket *storage.BucketHandle
}

// NewUploader resolves the Firebase app's default bucket.
func NewUploader(ctx context.Context) (*Uploader, error) {
	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		return nil, err
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, err
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("resolving default bucket: %w", err)
	}
	return &Uploader{bucket: bucket}, nil
}

// NewUploaderWithBucket uses an explicit bucket, mainly for tests and hosts
// that manage their own storage client.
func NewUploaderWithBucket(bucket *storage.BucketHandle) *Uploader {
	return &Uploader{bucket: bucket}
}

// Upload streams r into an object under the room's attachment path and makes
// it publicly readable. The returned descriptor is what gets embedded in the
// message document.
func (u *Uploader) Upload(ctx context.Context, roomID, filename, mimeType string, r io.Reader) (*Descriptor, error) {
	objectPath := objectName(roomID, filename, time.Now(), uuid.NewString())
	obj := u.bucket.Object(objectPath)

	w := obj.NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return nil, fmt.Errorf("uploading %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing %s: %w", objectPath, err)
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return nil, fmt.Errorf("publishing %s: %w", objectPath, err)
	}

	attrs := w.Attrs()
	return &Descriptor{
		URL:      publicURL(attrs.Bucket, attrs.Name),
		Path:     objectPath,
		MimeType: mimeType,
		Name:     filename,
		Size:     attrs.Size,
	}, nil
}

// objectName builds chats/{roomId}/attachments/{timestamp}-{nonce}-{name}.
// The nonce keeps two uploads of the same file in the same millisecond from
// colliding.
func objectName(roomID, filename string, now time.Time, nonce string) string {
	return fmt.Sprintf("chats/%s/attachments/%d-%s-%s",
		roomID, now.UnixMilli(), nonce, sanitizeFilename(filename))
}

// sanitizeFilename reduces a client-supplied name to a safe object-name
// component: base name only, no path separators or whitespace.
func sanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func publicURL(bucket, object string) string {
	segments := strings.Split(object, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", publicURLBase, bucket, strings.Join(segments, "/"))
}
