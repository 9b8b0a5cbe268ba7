package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/mapview"
)

const (
	sessionKeyPrefix = "maps:session:"       // maps:session:{id} -> state JSON
	userSetPrefix    = "maps:user:sessions:" // maps:user:sessions:{user_id} -> set of ids
)

// Redis stores sessions as JSON strings with a sliding TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, id string) (*mapview.State, error) {
	data, err := r.client.GetEx(ctx, sessionKeyPrefix+id, r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, domain.Backend("sessions.get", err)
	}
	return decode(data)
}

func (r *Redis) Put(ctx context.Context, st *mapview.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	userKey := userSetPrefix + st.UserID

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+st.ID, data, r.ttl)
	pipe.SAdd(ctx, userKey, st.ID)
	pipe.Expire(ctx, userKey, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Backend("sessions.put", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	st, err := r.Get(ctx, id)
	if domain.IsKind(err, domain.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	pipe.SRem(ctx, userSetPrefix+st.UserID, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Backend("sessions.delete", err)
	}
	return nil
}

// UserSessions lists the session IDs a user has open. Members whose
// session already expired are pruned from the set.
func (r *Redis) UserSessions(ctx context.Context, userID string) ([]string, error) {
	userKey := userSetPrefix + userID
	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, domain.Backend("sessions.list", err)
	}
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := r.client.Exists(ctx, sessionKeyPrefix+id).Result()
		if err != nil {
			return nil, domain.Backend("sessions.list", err)
		}
		if n == 0 {
			r.client.SRem(ctx, userKey, id)
			continue
		}
		live = append(live, id)
	}
	sort.Strings(live)
	return live, nil
}
