package baseline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/foreseon/IntelXScan/internal/config"
	"github.com/foreseon/IntelXScan/internal/model"
)

// RedisStore keeps each baseline as a JSON string under <prefix>baseline:<key>.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	mode    KeyMode
	lockTTL time.Duration
}

func NewRedisStore(cfg config.RedisConfig, mode KeyMode, lockTTL time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if mode == "" {
		mode = KeyLiteral
	}
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}
	return &RedisStore{client: client, prefix: cfg.KeyPrefix, mode: mode, lockTTL: lockTTL}
}

func (s *RedisStore) key(email string) (string, error) {
	k, err := storageKey(email, s.mode)
	if err != nil {
		return "", err
	}
	return s.prefix + "baseline:" + k, nil
}

func (s *RedisStore) Load(ctx context.Context, email string) ([]model.LeakRecord, error) {
	key, err := s.key(email)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.LeakRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decode(raw, key)
}

func (s *RedisStore) Save(ctx context.Context, email string, records []model.LeakRecord) error {
	if records == nil {
		return model.ErrNilRecords
	}
	key, err := s.key(email)
	if err != nil {
		return err
	}
	data, err := encode(records)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lock claims <prefix>lock with SETNX. While held, the TTL is extended every
// third of its length so long runs keep the lock; the TTL alone frees it if
// a run dies without releasing it.
func (s *RedisStore) Lock(ctx context.Context) (func() error, error) {
	key := s.prefix + "lock"
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	if !ok {
		return nil, model.ErrLocked
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go s.keepLock(key, token, stop, done)

	var once sync.Once
	return func() error {
		once.Do(func() {
			close(stop)
			<-done
		})
		return releaseLock.Run(context.Background(), s.client, []string{key}, token).Err()
	}, nil
}

func (s *RedisStore) keepLock(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := s.lockTTL / 3
	if every <= 0 {
		every = s.lockTTL
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			held, err := refreshLock.Run(context.Background(), s.client, []string{key}, token, s.lockTTL.Milliseconds()).Int()
			if err == nil && held == 0 {
				// taken over after expiry; nothing left to extend
				return
			}
		}
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
