package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-signup-api/internal/config"
	"github.com/go-signup-api/internal/domain"
)

// consumeScript reads a verification session, resolves its linked draft from
// the session body, and deletes both in one atomic EVAL. It returns nil when
// either record is missing so two concurrent consumers can never both
// succeed.
var consumeScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return false end
local sess = cjson.decode(raw)
local draft = false
if sess["linked_draft_key"] and sess["linked_draft_key"] ~= "" then
  draft = redis.call("GET", sess["linked_draft_key"])
  if not draft then return false end
  redis.call("DEL", sess["linked_draft_key"])
end
redis.call("DEL", KEYS[1])
return {raw, draft}
`)

// Store stages verification sessions and registration drafts in Redis with
// native per-key expiry. Values are JSON-encoded domain records.
type Store struct {
	client *redis.Client
}

func New(cfg *config.Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) PutSession(ctx context.Context, v *domain.VerificationSession) error {
	return s.putRecord(ctx, "put session", v.RecordKey, v, v.ExpiresAt)
}

func (s *Store) PutDraft(ctx context.Context, d *domain.RegistrationDraft) error {
	return s.putRecord(ctx, "put draft", d.RecordKey, d, d.ExpiresAt)
}

func (s *Store) GetSession(ctx context.Context, key string) (*domain.VerificationSession, error) {
	raw, err := s.getRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	var v domain.VerificationSession
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if v.Expired(time.Now()) {
		return nil, fmt.Errorf("session expired: %w", domain.ErrNotFound)
	}
	return &v, nil
}

func (s *Store) GetDraft(ctx context.Context, key string) (*domain.RegistrationDraft, error) {
	raw, err := s.getRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	var d domain.RegistrationDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	if d.Expired(time.Now()) {
		return nil, fmt.Errorf("draft expired: %w", domain.ErrNotFound)
	}
	return &d, nil
}

func (s *Store) DeleteSession(ctx context.Context, key string) error {
	return s.deleteRecord(ctx, "delete session", key)
}

func (s *Store) DeleteDraft(ctx context.Context, key string) error {
	return s.deleteRecord(ctx, "delete draft", key)
}

// ConsumeSessionAndDraft atomically removes a session and its linked draft
// and returns both. The whole read-and-delete runs inside one Lua script, so
// of any number of concurrent consumers exactly one receives the records.
func (s *Store) ConsumeSessionAndDraft(ctx context.Context, sessionKey string) (*domain.VerificationSession, *domain.RegistrationDraft, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{sessionKey}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, fmt.Errorf("record not found: %w", domain.ErrNotFound)
		}
		return nil, nil, storeErr("consume session and draft", err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return nil, nil, fmt.Errorf("unexpected consume script reply %T", res)
	}

	var sess domain.VerificationSession
	if err := json.Unmarshal([]byte(parts[0].(string)), &sess); err != nil {
		return nil, nil, fmt.Errorf("unmarshal session: %w", err)
	}

	var draft *domain.RegistrationDraft
	if rawDraft, ok := parts[1].(string); ok {
		draft = &domain.RegistrationDraft{}
		if err := json.Unmarshal([]byte(rawDraft), draft); err != nil {
			return nil, nil, fmt.Errorf("unmarshal draft: %w", err)
		}
	}

	// Physically evicted or not, a record past its logical expiry is absent.
	if sess.Expired(time.Now()) {
		return nil, nil, fmt.Errorf("session expired: %w", domain.ErrNotFound)
	}
	return &sess, draft, nil
}

func (s *Store) putRecord(ctx context.Context, op, key string, record interface{}, expiresAt int64) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	ttl := time.Until(time.Unix(expiresAt, 0))
	if ttl <= 0 {
		return fmt.Errorf("%s: record already expired: %w", op, domain.ErrBadRequest)
	}
	if err := s.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func (s *Store) getRecord(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("record not found: %w", domain.ErrNotFound)
		}
		return nil, storeErr("get record", err)
	}
	return raw, nil
}

func (s *Store) deleteRecord(ctx context.Context, op, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
}
