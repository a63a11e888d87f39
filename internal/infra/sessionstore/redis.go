package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/reclaimai/reclaim/internal/domain/auth"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

// Redis keeps workspace sessions as JSON values with a TTL and fans out
// session-change events over pub/sub, one channel per workspace.
type Redis struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

var (
	_ auth.Persistence = (*Redis)(nil)
	_ auth.Bus         = (*Redis)(nil)
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

func NewRedis(ctx context.Context, opts RedisOptions, log *logger.Logger) (*Redis, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if log == nil {
		log = logger.Nop()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "reclaim:session:"
	}
	return &Redis{
		log:    log.With("component", "RedisSessionStore"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    opts.TTL,
	}, nil
}

func (r *Redis) key(sid string) string     { return r.prefix + sid }
func (r *Redis) channel(sid string) string { return r.prefix + "events:" + sid }

func (r *Redis) Load(ctx context.Context, sid string) (*auth.Session, error) {
	raw, err := r.rdb.Get(ctx, r.key(sid)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var s auth.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *Redis) Save(ctx context.Context, sid string, s *auth.Session) error {
	if s == nil {
		return r.Delete(ctx, sid)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.rdb.Set(ctx, r.key(sid), raw, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, sid string) error {
	return r.rdb.Del(ctx, r.key(sid)).Err()
}

func (r *Redis) Publish(ctx context.Context, sid string, ev auth.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel(sid), raw).Err()
}

func (r *Redis) Subscribe(ctx context.Context, sid string, fn func(auth.Event)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("subscriber callback required")
	}
	sub := r.rdb.Subscribe(context.Background(), r.channel(sid))

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev auth.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					r.log.Warn("bad session event payload", "sid", sid, "error", err)
					continue
				}
				fn(ev)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}, nil
}

// Check pings redis.
func (r *Redis) Check(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
