package seen

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/tcadamson/recap.agdg.app/src/config"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/oops"
	"github.com/tcadamson/recap.agdg.app/src/utils"
)

// A Backend stores the set of thread ids that have already been classified.
type Backend interface {
	IDs(ctx context.Context) ([]int, error)
	Add(ctx context.Context, ids ...int) error
	Remove(ctx context.Context, ids ...int) error
}

// NewBackend builds the backend named by the config. It returns nil for the
// "none" backend, which a Cache treats as always empty.
func NewBackend(cfg config.SeenConfig) (Backend, error) {
	switch cfg.Backend {
	case config.SeenFile, "":
		return NewFileBackend(utils.OrDefault(cfg.Path, config.Defaults().Seen.Path)), nil
	case config.SeenRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisBackend(client, cfg.RedisPrefix), nil
	case config.SeenNone:
		return nil, nil
	default:
		return nil, oops.New(nil, "unknown seen backend %q", cfg.Backend)
	}
}

// ErrCorrupt is wrapped by FileBackend.IDs when the file cannot be decoded.
var ErrCorrupt = errors.New("seen thread file is corrupt")

// FileBackend keeps ids as a JSON array in a single file. A missing file is
// an empty set and a corrupt one is replaced on the next write.
type FileBackend struct {
	Path string

	mu sync.Mutex
}

var _ Backend = &FileBackend{}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) IDs(ctx context.Context) ([]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read()
}

func (b *FileBackend) Add(ctx context.Context, ids ...int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.readForWrite(ctx)
	if err != nil {
		return err
	}
	return b.write(append(existing, ids...))
}

func (b *FileBackend) Remove(ctx context.Context, ids ...int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.readForWrite(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(existing, func(id int) bool {
		return slices.Contains(ids, id)
	})
	return b.write(kept)
}

func (b *FileBackend) read() ([]int, error) {
	contents, err := os.ReadFile(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, oops.New(err, "failed to read seen threads from %s", b.Path)
	}

	var ids []int
	if err := json.Unmarshal(contents, &ids); err != nil {
		return nil, oops.New(errors.Join(ErrCorrupt, err), "failed to decode seen threads in %s", b.Path)
	}
	return ids, nil
}

// readForWrite is read for the write path: a corrupt file is overwritten
// rather than blocking every later write.
func (b *FileBackend) readForWrite(ctx context.Context) ([]int, error) {
	ids, err := b.read()
	if errors.Is(err, ErrCorrupt) {
		logging.ExtractLogger(ctx).Warn().Err(err).Msg("replacing corrupt seen thread file")
		return nil, nil
	}
	return ids, err
}

// write replaces the file through a rename so a crash never leaves it half
// written.
func (b *FileBackend) write(ids []int) error {
	ids = utils.SortedUnique(ids)
	if ids == nil {
		ids = []int{}
	}
	contents, err := json.Marshal(ids)
	if err != nil {
		return oops.New(err, "failed to encode seen threads")
	}

	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return oops.New(err, "failed to create directory for seen threads")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".*.tmp")
	if err != nil {
		return oops.New(err, "failed to create temp file for seen threads")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		return oops.New(err, "failed to write seen threads")
	}
	if err := tmp.Close(); err != nil {
		return oops.New(err, "failed to write seen threads")
	}
	if err := os.Rename(tmp.Name(), b.Path); err != nil {
		return oops.New(err, "failed to replace %s", b.Path)
	}
	return nil
}

// RedisBackend keeps one key per id under a prefix, e.g. recap:seen:12345.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

var _ Backend = &RedisBackend{}

func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{
		client: client,
		prefix: utils.OrDefault(prefix, config.Defaults().Seen.RedisPrefix),
	}
}

func (b *RedisBackend) key(id int) string {
	return b.prefix + strconv.Itoa(id)
}

func (b *RedisBackend) IDs(ctx context.Context) ([]int, error) {
	var ids []int
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		id, err := strconv.Atoi(strings.TrimPrefix(iter.Val(), b.prefix))
		if err != nil {
			// Someone else's key under our prefix.
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, oops.New(err, "failed to scan seen threads in redis")
	}
	return ids, nil
}

func (b *RedisBackend) Add(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Set(ctx, b.key(id), 1, 0)
		}
		return nil
	})
	if err != nil {
		return oops.New(err, "failed to add seen threads to redis")
	}
	return nil
}

func (b *RedisBackend) Remove(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.key(id)
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return oops.New(err, "failed to remove seen threads from redis")
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
