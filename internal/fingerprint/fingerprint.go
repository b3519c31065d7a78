package fingerprint

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"reelgate/internal/config"
	"reelgate/internal/services"
)

const bufferSize = 1 << 20

// Supported digest algorithms.
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmMD5    = "md5"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelgate_fingerprint_cache_hits_total",
		Help: "Content hashes served from the memo cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelgate_fingerprint_cache_misses_total",
		Help: "Content hashes computed by reading the file.",
	})
	bytesHashedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelgate_fingerprint_bytes_total",
		Help: "Bytes read while computing content hashes.",
	})
)

// fileKey identifies one version of a file. A rewrite changes size or mtime
// and therefore misses the cache.
type fileKey struct {
	path    string
	size    int64
	modTime int64
}

// Hasher computes content digests of files.
type Hasher struct {
	algorithm string
	cache     *expirable.LRU[fileKey, string]
	hits      atomic.Int64
	misses    atomic.Int64
}

// New returns a Hasher for algorithm. A positive cacheSize enables the memo
// cache with entries expiring after ttl.
func New(algorithm string, cacheSize int, ttl time.Duration) (*Hasher, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		algorithm = AlgorithmSHA256
	}
	if algorithm != AlgorithmSHA256 && algorithm != AlgorithmMD5 {
		return nil, services.Wrap(services.ErrConfiguration, "fingerprint", "init", fmt.Sprintf("unsupported algorithm %q", algorithm), nil)
	}
	h := &Hasher{algorithm: algorithm}
	if cacheSize > 0 {
		h.cache = expirable.NewLRU[fileKey, string](cacheSize, nil, ttl)
	}
	return h, nil
}

// NewFromConfig builds a Hasher from the fingerprint section.
func NewFromConfig(cfg *config.Config) (*Hasher, error) {
	if cfg == nil {
		return New(AlgorithmSHA256, 0, 0)
	}
	return New(cfg.Fingerprint.Algorithm, cfg.Fingerprint.CacheSize, cfg.FingerprintCacheTTL())
}

// Algorithm reports the digest in use.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// CacheStats reports memo hits and misses since construction.
func (h *Hasher) CacheStats() (hits, misses int64) {
	return h.hits.Load(), h.misses.Load()
}

// Hash streams the file at path through the digest and returns lowercase
// hex. Read failures, including the file vanishing or changing mid-read, are
// marked transient so the caller can retry on a later event.
func (h *Hasher) Hash(ctx context.Context, path string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "fingerprint", "open", path, err)
	}
	defer file.Close()

	before, err := file.Stat()
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "fingerprint", "stat", path, err)
	}
	if before.IsDir() {
		return "", services.Wrap(services.ErrValidation, "fingerprint", "stat", path+" is a directory", nil)
	}
	key := fileKey{path: path, size: before.Size(), modTime: before.ModTime().UnixNano()}
	if h.cache != nil {
		if sum, ok := h.cache.Get(key); ok {
			h.hits.Add(1)
			cacheHitsTotal.Inc()
			return sum, nil
		}
	}
	h.misses.Add(1)
	cacheMissesTotal.Inc()

	digest := h.newDigest()
	buf := make([]byte, bufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", path, err)
		}
		n, readErr := file.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
			bytesHashedTotal.Add(float64(n))
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return "", services.Wrap(services.ErrTransient, "fingerprint", "read", path, readErr)
		}
	}

	after, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "fingerprint", "stat", path, err)
	}
	if after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) {
		return "", services.Wrap(services.ErrTransient, "fingerprint", "read", path+" changed while hashing", nil)
	}

	sum := hex.EncodeToString(digest.Sum(nil))
	if h.cache != nil {
		h.cache.Add(key, sum)
	}
	return sum, nil
}

func (h *Hasher) newDigest() hash.Hash {
	if h.algorithm == AlgorithmMD5 {
		return md5.New()
	}
	return sha256.New()
}
