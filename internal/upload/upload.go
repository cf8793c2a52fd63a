// Package upload compresses published datasets and ships them to a blob store
// under a run timestamp.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/hash/sha256"
	"github.com/JakeFAU/apartment-crawler/internal/logging"
	"github.com/JakeFAU/apartment-crawler/internal/metrics"
)

// TimestampLayout names uploaded objects, e.g. 20240301T120000Z.
const TimestampLayout = "20060102T150405Z"

// Event announces a finished upload.
type Event struct {
	RunID      string    `json:"run_id"`
	Objects    []string          `json:"objects"`
	Checksums  map[string]string `json:"checksums"`
	UploadedAt time.Time         `json:"uploaded_at"`
}

// Config lists what to upload and where.
type Config struct {
	Prefix string
	Files  []string
	Topic  string
}

// Uploader gzips files and stores them through a BlobStore.
type Uploader struct {
	blobs     crawler.BlobStore
	publisher crawler.Publisher
	clock     crawler.Clock
	ids       crawler.IDGenerator
	hasher    crawler.Hasher
	cfg       Config
	logger    *zap.Logger
}

// New wires an Uploader. publisher may be nil, in which case no event is sent.
func New(
	blobs crawler.BlobStore,
	publisher crawler.Publisher,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) (*Uploader, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if clock == nil || ids == nil {
		return nil, fmt.Errorf("clock and id generator are required")
	}
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}
	if publisher != nil && cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required when a publisher is configured")
	}
	return &Uploader{
		blobs:     blobs,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		hasher:    sha256.New(),
		cfg:       cfg,
		logger:    logging.OrNop(logger).Named("upload"),
	}, nil
}

// ObjectName returns the destination path for file uploaded at ts.
func ObjectName(prefix, file string, ts time.Time) string {
	name := ts.UTC().Format(TimestampLayout) + "-" + filepath.Base(file) + ".gz"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Upload compresses and stores every configured file, then publishes an Event
// listing the object URIs.
func (u *Uploader) Upload(ctx context.Context) (Event, error) {
	runID, err := u.ids.NewID()
	if err != nil {
		return Event{}, fmt.Errorf("generate run id: %w", err)
	}
	now := u.clock.Now().UTC()
	event := Event{RunID: runID, Checksums: make(map[string]string, len(u.cfg.Files)), UploadedAt: now}

	for _, file := range u.cfg.Files {
		uri, sum, size, err := u.uploadFile(ctx, file, ObjectName(u.cfg.Prefix, file, now))
		if err != nil {
			return event, err
		}
		event.Objects = append(event.Objects, uri)
		event.Checksums[uri] = sum
		metrics.ObserveUpload()
		u.logger.Info("uploaded dataset", zap.String("file", file), zap.String("uri", uri), zap.Int("compressed_bytes", size))
	}

	if u.publisher != nil {
		id, err := u.publisher.Publish(ctx, u.cfg.Topic, event)
		if err != nil {
			return event, fmt.Errorf("publish upload event: %w", err)
		}
		u.logger.Info("upload event published", zap.String("topic", u.cfg.Topic), zap.String("message_id", id))
	}
	return event, nil
}

func (u *Uploader) uploadFile(ctx context.Context, file, object string) (string, string, int, error) {
	src, err := os.Open(file) // #nosec G304 -- file list comes from configuration.
	if err != nil {
		return "", "", 0, fmt.Errorf("open %s: %w", file, err)
	}
	defer func() { _ = src.Close() }()

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", "", 0, fmt.Errorf("create gzip writer: %w", err)
	}
	zw.Name = filepath.Base(file)
	if _, err := io.Copy(zw, src); err != nil {
		return "", "", 0, fmt.Errorf("compress %s: %w", file, err)
	}
	if err := zw.Close(); err != nil {
		return "", "", 0, fmt.Errorf("finish gzip for %s: %w", file, err)
	}

	// Checksum covers the compressed bytes as stored.
	sum, err := u.hasher.Hash(buf.Bytes())
	if err != nil {
		return "", "", 0, fmt.Errorf("hash %s: %w", file, err)
	}
	size := buf.Len()
	uri, err := u.blobs.PutObject(ctx, object, "application/gzip", &buf)
	if err != nil {
		return "", "", 0, fmt.Errorf("store %s: %w", object, err)
	}
	return uri, sum, size, nil
}
