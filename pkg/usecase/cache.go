package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dolthub/fslock"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

const (
	// written into an entry once its install step succeeded
	readyMarker = ".octgate-ready"
	lockPrefix  = ".lock-"

	lockPollInterval = 200 * time.Millisecond
)

// HashLockfile returns the hex sha256 of the lockfile contents
func HashLockfile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - lockfile path comes from config
	if err != nil {
		return "", domain.ErrCache.Wrap(goerr.Wrap(err, "failed to open lockfile"))
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", domain.ErrCache.Wrap(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileCacheStore keeps one directory per key under root. An entry is built in
// place at its final path while a per-key file lock is held, because
// virtualenvs record their absolute path and cannot be moved. A directory
// without the ready marker is an unfinished build and counts as a miss.
type FileCacheStore struct {
	root string
}

var _ interfaces.CacheStore = (*FileCacheStore)(nil)

func NewFileCacheStore(root string) *FileCacheStore {
	return &FileCacheStore{root: root}
}

func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "octgate")
	}
	return filepath.Join(os.TempDir(), "octgate-cache")
}

func (s *FileCacheStore) entryPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", domain.ErrCache.Wrap(goerr.New("invalid cache key: " + key))
	}
	return filepath.Join(s.root, key), nil
}

func (s *FileCacheStore) lock(key string) *fslock.Lock {
	return fslock.New(filepath.Join(s.root, lockPrefix+key))
}

// acquire blocks until the lock is held or ctx is done
func acquire(ctx context.Context, lock *fslock.Lock) error {
	err := retry.Do(lock.TryLock,
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(lockPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, fslock.ErrLocked) }),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return domain.ErrCache.Wrap(goerr.Wrap(err, "failed to lock cache entry"))
	}
	return nil
}

func (s *FileCacheStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	path, err := s.entryPath(key)
	if err != nil {
		return "", false, err
	}

	ready, err := isReady(path)
	if err != nil {
		return "", false, err
	}
	return path, ready, nil
}

func isReady(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, domain.ErrCache.Wrap(err)
	}
	if !info.IsDir() {
		return false, domain.ErrCache.Wrap(goerr.New("cache entry is not a directory: " + path))
	}

	if _, err := os.Stat(filepath.Join(path, readyMarker)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, domain.ErrCache.Wrap(err)
	}
	return true, nil
}

// Build runs build in the entry directory itself. Concurrent builders of the
// same key wait for the lock and then find the published entry.
func (s *FileCacheStore) Build(ctx context.Context, key string, build func(dir string) error) (string, error) {
	logger := ctxlog.From(ctx)

	path, hit, err := s.Lookup(ctx, key)
	if err != nil {
		return "", err
	}
	if hit {
		return path, nil
	}

	if err := os.MkdirAll(s.root, 0750); err != nil {
		return "", domain.ErrCache.Wrap(err)
	}

	lock := s.lock(key)
	if err := acquire(ctx, lock); err != nil {
		return "", err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to unlock cache entry", slog.String("key", key), slog.String("error", err.Error()))
		}
	}()

	// another run may have published while we waited
	if _, hit, err := s.Lookup(ctx, key); err != nil {
		return "", err
	} else if hit {
		logger.Debug("cache entry published concurrently", slog.String("key", key))
		return path, nil
	}

	// leftovers of an interrupted build
	if err := os.RemoveAll(path); err != nil {
		return "", domain.ErrCache.Wrap(err)
	}
	if err := os.Mkdir(path, 0750); err != nil {
		return "", domain.ErrCache.Wrap(err)
	}

	if err := build(path); err != nil {
		_ = os.RemoveAll(path)
		return "", err
	}

	if err := os.WriteFile(filepath.Join(path, readyMarker), []byte(time.Now().UTC().Format(time.RFC3339)), 0600); err != nil {
		_ = os.RemoveAll(path)
		return "", domain.ErrCache.Wrap(err)
	}

	logger.Debug("cache entry published", slog.String("key", key), slog.String("path", path))
	return path, nil
}

func (s *FileCacheStore) List(ctx context.Context) ([]*model.CacheEntry, error) {
	dirEntries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ErrCache.Wrap(err)
	}

	var entries []*model.CacheEntry
	for _, d := range dirEntries {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		path := filepath.Join(s.root, d.Name())
		ready, err := isReady(path)
		if err != nil {
			return nil, err
		}
		if !ready {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return nil, domain.ErrCache.Wrap(err)
		}
		size, err := dirSize(path)
		if err != nil {
			return nil, domain.ErrCache.Wrap(err)
		}
		entries = append(entries, &model.CacheEntry{
			Key:       d.Name(),
			Path:      path,
			Size:      size,
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Prune removes entries, finished or not, older than olderThan. Entries that
// are being built are left alone.
func (s *FileCacheStore) Prune(ctx context.Context, olderThan time.Duration) ([]string, error) {
	dirEntries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ErrCache.Wrap(err)
	}

	cutoff := time.Now().Add(-olderThan)
	var removed []string
	for _, d := range dirEntries {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return removed, domain.ErrCache.Wrap(err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		ok, err := s.removeEntry(d.Name())
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, d.Name())
		}
	}
	return removed, nil
}

func (s *FileCacheStore) removeEntry(key string) (bool, error) {
	lock := s.lock(key)
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, fslock.ErrLocked) {
			return false, nil
		}
		return false, domain.ErrCache.Wrap(err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.RemoveAll(filepath.Join(s.root, key)); err != nil {
		return false, domain.ErrCache.Wrap(err)
	}
	return true, nil
}

func dirSize(root string) (int64, error) {
	var size int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && d.Name() != readyMarker {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// MemoryCacheStore is a CacheStore without persistence. Build still receives
// a real directory so that install commands can write to it.
type MemoryCacheStore struct {
	mu      sync.Mutex
	root    string
	entries map[string]*model.CacheEntry
	builds  map[string]int
}

var _ interfaces.CacheStore = (*MemoryCacheStore)(nil)

func NewMemoryCacheStore(root string) *MemoryCacheStore {
	return &MemoryCacheStore{
		root:    root,
		entries: make(map[string]*model.CacheEntry),
		builds:  make(map[string]int),
	}
}

func (s *MemoryCacheStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e.Path, true, nil
	}
	return "", false, nil
}

func (s *MemoryCacheStore) Build(ctx context.Context, key string, build func(dir string) error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e.Path, nil
	}

	dir := filepath.Join(s.root, key)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", domain.ErrCache.Wrap(err)
	}
	if err := build(dir); err != nil {
		return "", err
	}

	s.builds[key]++
	s.entries[key] = &model.CacheEntry{Key: key, Path: dir, CreatedAt: time.Now()}
	return dir, nil
}

// Builds returns how many times key has been built
func (s *MemoryCacheStore) Builds(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds[key]
}

func (s *MemoryCacheStore) List(ctx context.Context) ([]*model.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*model.CacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (s *MemoryCacheStore) Prune(ctx context.Context, olderThan time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var removed []string
	for key, e := range s.entries {
		if e.CreatedAt.After(cutoff) {
			continue
		}
		delete(s.entries, key)
		removed = append(removed, key)
	}
	sort.Strings(removed)
	return removed, nil
}
