package failurelog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"

	"lockcode-manager/core/storage"

	"github.com/minio/minio-go/v7"
)

// ObjectLog keeps the mirror as a JSON array object in a bucket.
type ObjectLog struct {
	client storage.Client
	bucket string
	object string
	mu     sync.Mutex
}

// NewObjectLog creates a bucket-backed log stored under object.
func NewObjectLog(client storage.Client, bucket, object string) *ObjectLog {
	return &ObjectLog{client: client, bucket: bucket, object: path.Base(object)}
}

func (l *ObjectLog) read(ctx context.Context) ([]Entry, error) {
	obj, err := l.client.GetObject(ctx, l.bucket, l.object, minio.GetObjectOptions{})
	if storage.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failure log: %w", err)
	}
	defer obj.Close()

	// minio reports a missing key on the first read.
	data, err := io.ReadAll(obj)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read failure log: %w", err)
	}
	return decode(data)
}

func (l *ObjectLog) write(ctx context.Context, entries []Entry) error {
	data, err := encode(entries)
	if err != nil {
		return err
	}
	_, err = l.client.PutObject(ctx, l.bucket, l.object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to put failure log: %w", err)
	}
	return nil
}

// Append implements Log.
func (l *ObjectLog) Append(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read(ctx)
	if err != nil {
		return err
	}
	return l.write(ctx, append(entries, e))
}

// Prune implements Log.
func (l *ObjectLog) Prune(ctx context.Context, ids []uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read(ctx)
	if err != nil {
		return err
	}
	kept, changed := prune(entries, ids)
	if !changed {
		return nil
	}
	return l.write(ctx, kept)
}

// List implements Log.
func (l *ObjectLog) List(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}
