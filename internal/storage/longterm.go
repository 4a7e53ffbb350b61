package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"diagram_engine/src/logger"
)

// DefaultMaxRevisions is how many accepted documents a session file keeps
const DefaultMaxRevisions = 20

// Revision is one accepted document of a session
type Revision struct {
	Timestamp time.Time `json:"timestamp"`
	Document  string    `json:"document"`
	Bytes     int       `json:"bytes"`
}

// FileDocumentStore keeps every session as <session>.json holding its
// revisions, oldest first. Load returns the newest.
type FileDocumentStore struct {
	mu           sync.RWMutex // guards the read-modify-write of session files
	baseDir      string
	maxRevisions int
}

// NewFileDocumentStore creates a directory-backed document store
func NewFileDocumentStore(baseDir string, maxRevisions int) *FileDocumentStore {
	if maxRevisions <= 0 {
		maxRevisions = DefaultMaxRevisions
	}
	return &FileDocumentStore{baseDir: baseDir, maxRevisions: maxRevisions}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func (f *FileDocumentStore) path(sessionID string) string {
	return filepath.Join(f.baseDir, unsafeFileChars.ReplaceAllString(sessionID, "_")+".json")
}

// History loads all revisions of a session, oldest first
func (f *FileDocumentStore) History(sessionID string) ([]Revision, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.history(sessionID)
}

func (f *FileDocumentStore) history(sessionID string) ([]Revision, error) {
	data, err := os.ReadFile(f.path(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Revision{}, nil
		}
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	var revisions []Revision
	if err := sonic.Unmarshal(data, &revisions); err != nil {
		return nil, fmt.Errorf("failed to parse document file: %w", err)
	}
	return revisions, nil
}

func (f *FileDocumentStore) Load(ctx context.Context, sessionID string) (string, bool, error) {
	revisions, err := f.History(sessionID)
	if err != nil {
		return "", false, err
	}
	if len(revisions) == 0 {
		return "", false, nil
	}
	return revisions[len(revisions)-1].Document, true, nil
}

// Save appends a revision, dropping the oldest beyond the revision limit
func (f *FileDocumentStore) Save(ctx context.Context, sessionID, document string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if err := os.MkdirAll(f.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	revisions, err := f.history(sessionID)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to load document history, starting fresh")
		revisions = []Revision{}
	}

	revisions = append(revisions, Revision{
		Timestamp: time.Now().UTC(),
		Document:  document,
		Bytes:     len(document),
	})
	if extra := len(revisions) - f.maxRevisions; extra > 0 {
		revisions = revisions[extra:]
	}

	data, err := sonic.ConfigStd.MarshalIndent(revisions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document history: %w", err)
	}
	path := f.path(sessionID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write document file: %w", err)
	}

	logger.Debug().Str("session_id", sessionID).Str("path", path).Int("revisions", len(revisions)).Msg("document saved")
	return nil
}

// DocumentStats summarizes a session file
type DocumentStats struct {
	SessionID     string    `json:"session_id"`
	Revisions     int       `json:"revisions"`
	OldestEntry   time.Time `json:"oldest_entry"`
	NewestEntry   time.Time `json:"newest_entry"`
	LatestBytes   int       `json:"latest_bytes"`
	FileSizeBytes int64     `json:"file_size_bytes"`
}

// Stats returns statistics about a session's stored documents
func (f *FileDocumentStore) Stats(sessionID string) (*DocumentStats, error) {
	revisions, err := f.History(sessionID)
	if err != nil {
		return nil, err
	}

	stats := &DocumentStats{SessionID: sessionID, Revisions: len(revisions)}
	if len(revisions) == 0 {
		return stats, nil
	}

	stats.OldestEntry = revisions[0].Timestamp
	stats.NewestEntry = revisions[len(revisions)-1].Timestamp
	stats.LatestBytes = revisions[len(revisions)-1].Bytes

	if info, err := os.Stat(f.path(sessionID)); err == nil {
		stats.FileSizeBytes = info.Size()
	}
	return stats, nil
}
