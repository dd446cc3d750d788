package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	goeen_log "github.com/eencloud/goeen/log"
)

// Incomplete signups older than this are swept by the maintenance worker (business rule)
const staleSubmissionTTL = 72 * time.Hour

const submissionKeyPrefix = "submission_"

// ErrSubmissionNotFound is returned when no record exists for the given id.
var ErrSubmissionNotFound = errors.New("submission not found")

// Submission is one customer's persisted progress through a form flow.
// UserData and IntegrationData are opaque JSON owned by the wizard layer;
// the store never interprets them.
type Submission struct {
	ID              string          `json:"id"`
	FormType        string          `json:"form_type"`
	UserData        json.RawMessage `json:"user_data,omitempty"`
	StepCompleted   int             `json:"step_completed"`
	Status          string          `json:"status"`
	IntegrationData json.RawMessage `json:"integration_data,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SubmissionStore manages persistence of form submissions
type SubmissionStore struct {
	db      *badger.DB
	maxSize int64
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *goeen_log.Logger
}

func NewSubmissionStore(dir string, maxSizeGB int, logger *goeen_log.Logger) (*SubmissionStore, error) {
	maxSize := int64(maxSizeGB) * 1024 * 1024 * 1024

	// Check for stale lock file and attempt cleanup
	if err := cleanupStaleLock(dir, logger); err != nil {
		logger.Warningf("Failed to cleanup potential stale lock: %v", err)
	}

	opts := badger.DefaultOptions(dir).
		WithValueLogFileSize(1 << 20). // 1MB value log files
		WithMemTableSize(32 << 20).    // 32MB mem tables
		WithNumMemtables(3).
		WithNumCompactors(4).
		WithSyncWrites(false). // Async for performance
		WithBlockCacheSize(64 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	store := &SubmissionStore{
		db:      db,
		maxSize: maxSize,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}

	go store.maintenanceWorker()

	return store, nil
}

func submissionKey(id string) []byte {
	return []byte(submissionKeyPrefix + id)
}

// Create persists a brand new submission record. Fails if the id is taken.
func (s *SubmissionStore) Create(sub *Submission) error {
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	key := submissionKey(sub.ID)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("submission %s already exists", sub.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("failed to marshal submission: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to store submission: %w", err)
	}

	s.logger.Debugf("Stored submission %s (%s)", sub.ID, sub.FormType)
	return nil
}

// Get loads a submission by id.
func (s *SubmissionStore) Get(id string) (*Submission, error) {
	var sub Submission

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(submissionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSubmissionNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sub)
		})
	})
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

// Update applies fn to the stored record inside a single transaction so the
// read-modify-write is atomic at the record level. fn sees the current state
// and mutates it in place; a returned error aborts without writing.
func (s *SubmissionStore) Update(id string, fn func(*Submission) error) (*Submission, error) {
	var sub Submission

	err := s.db.Update(func(txn *badger.Txn) error {
		key := submissionKey(id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSubmissionNotFound
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sub)
		}); err != nil {
			return err
		}

		if err := fn(&sub); err != nil {
			return err
		}
		sub.UpdatedAt = time.Now()

		data, err := json.Marshal(&sub)
		if err != nil {
			return fmt.Errorf("failed to marshal submission: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

// ListByForm returns up to limit submissions for a form type, newest last.
func (s *SubmissionStore) ListByForm(formType string, limit int) ([]*Submission, error) {
	var subs []*Submission

	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		it := txn.NewIterator(itOpts)
		defer it.Close()

		prefix := []byte(submissionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(subs) < limit; it.Next() {
			var data []byte
			err := it.Item().Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return err
			}

			var sub Submission
			if err := json.Unmarshal(data, &sub); err != nil {
				continue
			}
			if formType == "" || sub.FormType == formType {
				subs = append(subs, &sub)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return subs, nil
}

// CountByStatus tallies submissions per status for the metrics endpoint.
func (s *SubmissionStore) CountByStatus() (map[string]int, error) {
	counts := make(map[string]int)

	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		it := txn.NewIterator(itOpts)
		defer it.Close()

		prefix := []byte(submissionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sub Submission
			if it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &sub) }) == nil {
				counts[sub.Status]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return counts, nil
}

func (s *SubmissionStore) maintenanceWorker() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runMaintenance()
		}
	}
}

func (s *SubmissionStore) runMaintenance() {
	// 1. Sweep stale incomplete signups
	s.cleanupStale()

	// 2. Size-based cleanup if database is getting full
	s.cleanupBySize()

	// 3. BadgerDB garbage collection
	if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		s.logger.Errorf("Submission store value log GC failed: %v", err)
	}
}

func (s *SubmissionStore) cleanupStale() {
	now := time.Now()
	var keysToDelete [][]byte

	// Scan for abandoned signups (key-only for speed)
	if err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(submissionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sub Submission
			if it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &sub) }) == nil {
				if sub.Status != StatusCompleted && now.Sub(sub.UpdatedAt) > staleSubmissionTTL {
					keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
				}
			}
		}
		return nil
	}); err != nil {
		s.logger.Errorf("Stale cleanup scan failed: %v", err)
		return
	}

	if len(keysToDelete) > 0 {
		if err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keysToDelete {
				if err := txn.Delete(key); err != nil {
					s.logger.Errorf("Failed to delete key: %v", err)
				}
			}
			return nil
		}); err != nil {
			s.logger.Errorf("Stale cleanup delete failed: %v", err)
		} else {
			s.logger.Infof("Cleaned up %d incomplete submissions older than %v", len(keysToDelete), staleSubmissionTTL)
		}
	}
}

func (s *SubmissionStore) cleanupBySize() {
	currentSize := s.getApproximateSize()

	if currentSize > s.maxSize*70/100 && currentSize < s.maxSize*80/100 {
		s.logger.Warningf("Database at 70%% capacity (%d MB / %d MB)", currentSize/1024/1024, s.maxSize/1024/1024)
	}

	if currentSize < s.maxSize*80/100 {
		return // Not full enough
	}

	s.logger.Errorf("Database at 80%% capacity - starting cleanup (%d MB / %d MB)", currentSize/1024/1024, s.maxSize/1024/1024)
	targetSize := s.maxSize * 60 / 100
	var keysToDelete [][]byte

	// Oldest records go first
	if err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(submissionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if s.getApproximateSize() <= targetSize {
				break
			}
			keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
		}
		return nil
	}); err != nil {
		s.logger.Errorf("Size cleanup scan failed: %v", err)
		return
	}

	if len(keysToDelete) > 0 {
		if err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keysToDelete {
				if err := txn.Delete(key); err != nil {
					s.logger.Errorf("Failed to delete key: %v", err)
				}
			}
			return nil
		}); err != nil {
			s.logger.Errorf("Size cleanup delete failed: %v", err)
		} else {
			s.logger.Infof("Size cleanup: deleted %d oldest submissions", len(keysToDelete))
		}
	}
}

func (s *SubmissionStore) getApproximateSize() int64 {
	lsm, vlog := s.db.Size()
	return lsm + vlog
}

// GetDB returns the underlying Badger database for metrics access
func (s *SubmissionStore) GetDB() *badger.DB {
	return s.db
}

func (s *SubmissionStore) Close() error {
	s.cancel()
	return s.db.Close()
}

// cleanupStaleLock attempts to remove stale BadgerDB lock files
// This is safe because we're checking if the process is actually running
func cleanupStaleLock(dir string, logger *goeen_log.Logger) error {
	lockFile := filepath.Join(dir, "LOCK")

	if _, err := os.Stat(lockFile); os.IsNotExist(err) {
		return nil // No lock file, nothing to clean
	}

	// For containers, we can assume if we're starting up, any previous
	// instance was killed ungracefully. This is safe because:
	// 1. Container orchestration ensures only one instance per volume
	// 2. If another process was using it, Open() would fail anyway
	logger.Infof("Found potential stale lock file, attempting cleanup: %s", lockFile)

	if err := os.Remove(lockFile); err != nil {
		return fmt.Errorf("failed to remove stale lock file: %w", err)
	}

	logger.Infof("Successfully removed stale lock file: %s", lockFile)
	return nil
}
