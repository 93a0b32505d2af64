package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"messaging-core/internal/domain/user"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key pattern:
// - identity:{kind}:{id} - display fields for a user or partner

// CacheConfig contains configuration for caching
type CacheConfig struct {
	IdentityTTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{IdentityTTL: 5 * time.Minute}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	if config.IdentityTTL <= 0 {
		config.IdentityTTL = DefaultCacheConfig().IdentityTTL
	}
	return &CacheStore{client: client, config: config}
}

func identityKey(kind user.IdentityKind, id uuid.UUID) string {
	return fmt.Sprintf("identity:%s:%s", kind, id.String())
}

// GetIdentities returns the cached identities and the ids that missed.
// Unreadable entries count as misses.
func (c *CacheStore) GetIdentities(ctx context.Context, kind user.IdentityKind, ids []uuid.UUID) (map[uuid.UUID]user.Identity, []uuid.UUID, error) {
	result := make(map[uuid.UUID]user.Identity, len(ids))
	var misses []uuid.UUID
	if len(ids) == 0 {
		return result, misses, nil
	}

	pipe := c.client.Pipeline()
	cmds := make([]*goredis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, identityKey(kind, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return result, ids, err
	}

	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			misses = append(misses, ids[i])
			continue
		}
		var ident user.Identity
		if err := json.Unmarshal(data, &ident); err != nil {
			misses = append(misses, ids[i])
			continue
		}
		result[ids[i]] = ident
	}
	return result, misses, nil
}

func (c *CacheStore) SetIdentities(ctx context.Context, identities []user.Identity) error {
	if len(identities) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, ident := range identities {
		data, err := json.Marshal(ident)
		if err != nil {
			return err
		}
		pipe.Set(ctx, identityKey(ident.Kind, ident.ID), data, c.config.IdentityTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}
