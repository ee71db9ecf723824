package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Escrow/internal/domain"
)

const defaultRedisPrefix = "escrow:lock"

var (
	// acquireScript: запись (hash) перезаписывается, только если её нет
	// или её expires_at <= now. Время берётся из аргумента, а не из Redis,
	// чтобы решения об истечении принимались по часам приложения.
	//
	// KEYS[1] — ключ; ARGV: now_ms, token, expires_ms, name, scope.
	acquireScript = redis.NewScript(`
local exp = redis.call("HGET", KEYS[1], "expires_at")
if exp and tonumber(exp) > tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1],
  "token", ARGV[2],
  "acquired_at", ARGV[1],
  "expires_at", ARGV[3],
  "name", ARGV[4],
  "scope", ARGV[5])
return 1
`)

	// releaseScript удаляет ключ, только если токен совпадает.
	releaseScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token") == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
)

// RedisStore — Store поверх Redis.
//
// Атомарность обеспечивается Lua-скриптами (скрипт выполняется
// как одна транзакция). Истёкшие записи не удаляются, их перезаписывает
// следующий захват.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore создаёт RedisStore. Пустой prefix заменяется на "escrow:lock".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient подключается к Redis по URL и проверяет соединение.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// TryAcquire реализует Store.
func (s *RedisStore) TryAcquire(ctx context.Context, l domain.Lock, now time.Time) (bool, error) {
	res, err := acquireScript.Run(ctx, s.client, []string{s.key(l.Name, l.Scope)},
		now.UnixMilli(),
		l.HolderToken,
		unixMilliCeil(l.ExpiresAt),
		l.Name,
		l.Scope,
	).Int64()
	if err != nil {
		return false, wrapRedisErr("acquire", err)
	}
	return res == 1, nil
}

// Release реализует Store.
func (s *RedisStore) Release(ctx context.Context, name, scope, token string) (bool, error) {
	res, err := releaseScript.Run(ctx, s.client, []string{s.key(name, scope)}, token).Int64()
	if err != nil {
		return false, wrapRedisErr("release", err)
	}
	return res == 1, nil
}

// Get реализует Store.
func (s *RedisStore) Get(ctx context.Context, name, scope string) (*domain.Lock, error) {
	fields, err := s.client.HGetAll(ctx, s.key(name, scope)).Result()
	if err != nil {
		return nil, wrapRedisErr("get", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return lockFromHash(fields)
}

// List реализует Store.
func (s *RedisStore) List(ctx context.Context) ([]domain.Lock, error) {
	var locks []domain.Lock

	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		fields, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, wrapRedisErr("list", err)
		}
		if len(fields) == 0 {
			continue
		}
		l, err := lockFromHash(fields)
		if err != nil {
			return nil, err
		}
		locks = append(locks, *l)
	}
	if err := iter.Err(); err != nil {
		return nil, wrapRedisErr("scan", err)
	}

	slices.SortFunc(locks, func(a, b domain.Lock) int {
		if c := strings.Compare(a.Scope, b.Scope); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return locks, nil
}

// key: <prefix>:<len(scope)>:<scope>:<name>. Длина scope делает ключ
// однозначным, если scope или name содержат ':'.
func (s *RedisStore) key(name, scope string) string {
	return s.prefix + ":" + strconv.Itoa(len(scope)) + ":" + scope + ":" + name
}

// unixMilliCeil округляет вверх до миллисекунды: запись в Redis
// не должна истечь раньше, чем domain.Lock.ExpiresAt.
func unixMilliCeil(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Nanosecond()%int(time.Millisecond) != 0 {
		ms++
	}
	return ms
}

func lockFromHash(fields map[string]string) (*domain.Lock, error) {
	acquired, err := strconv.ParseInt(fields["acquired_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse acquired_at: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &domain.Lock{
		Name:        fields["name"],
		Scope:       fields["scope"],
		HolderToken: fields["token"],
		AcquiredAt:  time.UnixMilli(acquired).UTC(),
		ExpiresAt:   time.UnixMilli(expires).UTC(),
	}, nil
}

// wrapRedisErr помечает сетевые сбои и BUSY как транзакционный конфликт.
func wrapRedisErr(op string, err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("redis %s: %w: %w", op, ErrConflict, err)
	}
	if strings.HasPrefix(err.Error(), "BUSY") || strings.HasPrefix(err.Error(), "TRYAGAIN") {
		return fmt.Errorf("redis %s: %w: %w", op, ErrConflict, err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}
