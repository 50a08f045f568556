package model

import (
	"fmt"
	"time"
)

const DefaultCacheQualifier = "dbt-cloud"

// CacheKey addresses a dependency cache entry. Entries are immutable once
// written; a different lockfile hash yields a different key.
type CacheKey struct {
	OS             string
	RuntimeVersion string
	LockfileHash   string
	Qualifier      string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("venv-%s-%s-%s-%s", k.OS, k.RuntimeVersion, k.LockfileHash, k.Qualifier)
}

type CacheEntry struct {
	Key       string
	Path      string
	Size      int64
	CreatedAt time.Time
}
