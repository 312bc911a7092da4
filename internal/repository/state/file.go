package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/wire"
)

// Repository defines persistence operations for the panel state.
type Repository interface {
	Load(ctx context.Context) (*alarm.Snapshot, error)
	Save(ctx context.Context, snapshot *alarm.Snapshot) error
}

// ErrNotFound is returned when no state has been saved yet.
var ErrNotFound = errors.New("state not found")

// FileRepository persists the panel state to a JSON file on disk.
// JSON is produced and consumed via protojson so the file matches the gRPC
// snapshot document.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the state from disk.
func (r *FileRepository) Load(_ context.Context) (*alarm.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	snapshot, err := wire.SnapshotFromStruct(&doc)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	return snapshot, nil
}

// Save writes the state to a temporary file and renames it over the old one.
func (r *FileRepository) Save(_ context.Context, snapshot *alarm.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(wire.SnapshotToStruct(snapshot))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}
