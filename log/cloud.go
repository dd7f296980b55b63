package log

import (
	"context"
	stdlog "log"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/logging"
)

// StandardLogger returns a *log.Logger backed by Cloud Logging when running
// on GCP, falling back to the process default logger elsewhere (local runs of
// the batch tools). The returned closer flushes buffered entries.
func StandardLogger(ctx context.Context, name string) (*stdlog.Logger, func() error, error) {
	if !metadata.OnGCE() {
		return stdlog.Default(), func() error { return nil }, nil
	}
	projectID, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, err := logging.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return client.Logger(name).StandardLogger(logging.Info), client.Close, nil
}
