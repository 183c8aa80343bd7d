package imagestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/deepfake-detector/internal/imagecheck"
	"github.com/example/deepfake-detector/internal/logging"
)

// ErrNotFound is returned for handles that were never acquired or have
// already been released.
var ErrNotFound = errors.New("image handle not found")

// URLPrefix is the path under which live handles are served.
const URLPrefix = "/images/"

// Image is a transient reference to image bytes held by the store. It stays
// resolvable until Release is called with its ID.
type Image struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Digest      string    `json:"sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

// Upload is a validated file handed over by the upload widget.
type Upload struct {
	FileName string
	Data     []byte
	Meta     imagecheck.Metadata
}

// Store keeps uploaded bytes in memory behind handles.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	acquired int64
	released int64
	logger   *zap.Logger
}

type entry struct {
	image Image
	data  []byte
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		logger:  logger.Named("image_store"),
	}
}

// Acquire copies the upload into the store and returns a new handle.
func (s *Store) Acquire(upload Upload) (Image, error) {
	if len(upload.Data) == 0 {
		return Image{}, logging.NewOperationError("imagestore.acquire", "", imagecheck.ErrEmpty)
	}

	id := uuid.NewString()
	digest := sha256.Sum256(upload.Data)
	img := Image{
		ID:          id,
		URL:         URLPrefix + id,
		FileName:    upload.FileName,
		ContentType: upload.Meta.ContentType,
		Size:        int64(len(upload.Data)),
		Width:       upload.Meta.Width,
		Height:      upload.Meta.Height,
		Digest:      hex.EncodeToString(digest[:]),
		CreatedAt:   time.Now().UTC(),
	}
	data := append([]byte(nil), upload.Data...)

	s.mu.Lock()
	s.entries[id] = &entry{image: img, data: data}
	s.acquired++
	s.mu.Unlock()

	logging.WithOperation(s.logger, "imagestore.acquire", id).Debug("image handle acquired",
		zap.String("file_name", img.FileName),
		zap.Int64("size", img.Size),
	)
	return img, nil
}

// Get returns the bytes and metadata behind a live handle.
func (s *Store) Get(id string) ([]byte, Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, Image{}, logging.NewOperationError("imagestore.get", id, ErrNotFound)
	}
	return e.data, e.image, nil
}

// Release drops the bytes behind a handle. Releasing the same handle twice
// returns ErrNotFound.
func (s *Store) Release(id string) error {
	s.mu.Lock()
	_, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
		s.released++
	}
	s.mu.Unlock()

	if !ok {
		return logging.NewOperationError("imagestore.release", id, ErrNotFound)
	}
	logging.WithOperation(s.logger, "imagestore.release", id).Debug("image handle released")
	return nil
}

// Stats reports handle counts since the store was created.
type Stats struct {
	Live     int   `json:"live"`
	Acquired int64 `json:"acquired"`
	Released int64 `json:"released"`
}

// Stats returns a snapshot of the handle counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Live: len(s.entries), Acquired: s.acquired, Released: s.released}
}
