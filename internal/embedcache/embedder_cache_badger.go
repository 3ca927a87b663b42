package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/mrag/internal/ai"
	"go.uber.org/zap"
)

type badgerLogger struct{}

func (badgerLogger) Errorf(msg string, args ...interface{}) {
	logutil.GetLogger(context.Background()).Error(fmt.Sprintf(msg, args...))
}

func (badgerLogger) Warningf(msg string, args ...interface{}) {
	logutil.GetLogger(context.Background()).Warn(fmt.Sprintf(msg, args...))
}

func (badgerLogger) Infof(msg string, args ...interface{}) {}

func (badgerLogger) Debugf(msg string, args ...interface{}) {}

// Store persists embeddings keyed by model and content hash.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenStore opens a badger store at dir. An empty dir keeps the store in memory.
func OpenStore(dir string, ttl time.Duration) (*Store, error) {
	var opts badger.Options
	if strings.TrimSpace(dir) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create embed cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embed cache: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) ([]float32, bool, error) {
	var vec []float32
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec = decodeVector(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (s *Store) Put(key string, vec []float32) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), encodeVector(vec))
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// GC reclaims value log space. It returns nil when nothing was rewritten.
func (s *Store) GC(discardRatio float64) error {
	if s.db.Opts().InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func WrapStoreCacheToEmbedder(e ai.IEmbedder, store *Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &storeEmbedder{next: e, store: store}
}

type storeEmbedder struct {
	next  ai.IEmbedder
	store *Store
}

func (d *storeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := d.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (d *storeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	modelName := d.next.ModelName()
	return embedThrough(ctx, texts, func(text string) ([]float32, bool) {
		vec, ok, err := d.store.Get(buildCacheKey(modelName, text))
		if err != nil {
			logutil.GetLogger(ctx).Warn("read embedding cache failed", zap.Error(err))
			return nil, false
		}
		return vec, ok
	}, d.next.EmbedBatch, func(text string, vec []float32) {
		if err := d.store.Put(buildCacheKey(modelName, text), vec); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
	}, "badger")
}

func (d *storeEmbedder) ModelName() string {
	return d.next.ModelName()
}

func buildCacheKey(modelName, text string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	return "embed:" + modelName + ":" + hex.EncodeToString(hash[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
