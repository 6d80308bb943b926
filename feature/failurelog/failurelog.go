package failurelog

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"lockcode-manager/core/models"
	"lockcode-manager/core/storage"
)

// Backends selectable through sync.failure_log_backend.
const (
	BackendFile    = "file"
	BackendStorage = "storage"
	BackendNone    = "none"
)

// Entry is one mirrored failure. Field names follow the JSON array that
// operators already read.
type Entry struct {
	ID            uint      `json:"id"`
	RunID         *uint     `json:"run_id,omitempty"`
	ReservationID string    `json:"reservation_id"`
	LockID        string    `json:"lock_id"`
	Property      string    `json:"property"`
	GuestName     string    `json:"guest_name"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Kind          string    `json:"error_type"`
	Message       string    `json:"error_message"`
	RawError      string    `json:"raw_error,omitempty"`
	RetryCount    int       `json:"retry_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// FromRecord mirrors a failure record.
func FromRecord(f models.FailureRecord) Entry {
	return Entry{
		ID:            f.ID,
		RunID:         f.RunID,
		ReservationID: f.ReservationID,
		LockID:        f.LockID,
		Property:      f.Property,
		GuestName:     f.GuestName,
		CheckIn:       f.CheckIn,
		CheckOut:      f.CheckOut,
		Kind:          f.Kind,
		Message:       f.Message,
		RawError:      f.RawError,
		RetryCount:    f.RetryCount,
		Timestamp:     f.CreatedAt,
	}
}

// Log is the failure mirror.
type Log interface {
	// Append adds one entry.
	Append(ctx context.Context, e Entry) error
	// Prune drops the entries of resolved failures.
	Prune(ctx context.Context, ids []uint) error
	// List returns all entries in append order.
	List(ctx context.Context) ([]Entry, error)
}

func decode(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode failure log: %w", err)
	}
	return entries, nil
}

func encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

func prune(entries []Entry, ids []uint) ([]Entry, bool) {
	kept := slices.DeleteFunc(slices.Clone(entries), func(e Entry) bool {
		return slices.Contains(ids, e.ID)
	})
	return kept, len(kept) != len(entries)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Append(context.Context, Entry) error { return nil }

func (Nop) Prune(context.Context, []uint) error { return nil }

func (Nop) List(context.Context) ([]Entry, error) { return nil, nil }

// Open builds the log for a backend name. client may be nil unless the
// backend is BackendStorage.
func Open(backend, filePath string, client storage.Client, bucket string) (Log, error) {
	switch backend {
	case BackendFile, "":
		return NewFileLog(filePath), nil
	case BackendStorage:
		if client == nil {
			return nil, fmt.Errorf("failure log backend %q needs a storage client", backend)
		}
		return NewObjectLog(client, bucket, filePath), nil
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown failure log backend %q", backend)
	}
}
