package redis_store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/redis/go-redis/v9"
)

// expiredGrace keeps an expired token readable long enough to answer
// "expired" rather than "invalid".
const expiredGrace = 10 * time.Minute

// consumeScript returns 0 for invalid, 1 for expired and 2 for consumed.
// The token is deleted in the last two cases.
var consumeScript = redis.NewScript(`
local t = redis.call('HMGET', KEYS[1], 'fileId', 'hash', 'action', 'exp')
if not t[1] then
	return 0
end
if t[1] ~= ARGV[1] or t[2] ~= ARGV[2] or t[3] ~= ARGV[3] then
	return 0
end
redis.call('DEL', KEYS[1])
if tonumber(t[4]) <= tonumber(ARGV[4]) then
	return 1
end
return 2
`)

var refreshScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'exp', ARGV[1])
redis.call('PEXPIREAT', KEYS[1], ARGV[2])
if redis.call('GET', KEYS[2]) == ARGV[3] then
	redis.call('PEXPIREAT', KEYS[2], ARGV[1])
end
return 1
`)

// TokenStore keeps transfer tokens in Redis so every gateway sees the same
// single-use state. Redis expiry replaces the in-memory sweeper.
type TokenStore struct {
	client redis.Cmdable
	prefix string
}

var _ port.TokenRepository = (*TokenStore)(nil)

// NewTokenStore namespaces every key under prefix.
func NewTokenStore(client redis.Cmdable, prefix string) *TokenStore {
	return &TokenStore{client: client, prefix: prefix}
}

func (s *TokenStore) tokenKey(token string) string {
	return s.prefix + "token:" + token
}

func (s *TokenStore) scopeKey(scope domain.TokenScope) string {
	return fmt.Sprintf("%stokidx:%s:%s:%s:%s", s.prefix, scope.FileID, scope.Hash, scope.UserID, scope.Action)
}

func (s *TokenStore) FindLive(ctx context.Context, scope domain.TokenScope, now time.Time) (*domain.Token, error) {
	value, err := s.client.Get(ctx, s.scopeKey(scope)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token index: %w", err)
	}

	fields, err := s.client.HGetAll(ctx, s.tokenKey(value)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	tok, err := decodeToken(value, fields)
	if err != nil {
		return nil, err
	}
	if tok.Expired(now) || !tok.Matches(scope.FileID, scope.Hash, scope.Action) {
		return nil, nil
	}
	return tok, nil
}

func (s *TokenStore) Save(ctx context.Context, token *domain.Token) error {
	exp := token.ExpiresAt.UnixMilli()
	tk := s.tokenKey(token.Token)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, tk,
			"fileId", token.FileID,
			"hash", token.Hash,
			"userId", token.UserID,
			"action", string(token.Action),
			"contentType", token.ContentType,
			"exp", exp,
		)
		pipe.PExpireAt(ctx, tk, token.ExpiresAt.Add(expiredGrace))
		pipe.Set(ctx, s.scopeKey(token.Scope()), token.Token, 0)
		pipe.PExpireAt(ctx, s.scopeKey(token.Scope()), token.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *TokenStore) Refresh(ctx context.Context, token string, expiresAt time.Time) error {
	fields, err := s.client.HMGet(ctx, s.tokenKey(token), "fileId", "hash", "userId", "action").Result()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if fields[0] == nil {
		return domain.ErrTokenInvalid
	}
	scope := domain.TokenScope{
		FileID: str(fields[0]),
		Hash:   str(fields[1]),
		UserID: str(fields[2]),
		Action: domain.TokenAction(str(fields[3])),
	}

	keys := []string{s.tokenKey(token), s.scopeKey(scope)}
	exp := expiresAt.UnixMilli()
	ok, err := refreshScript.Run(ctx, s.client, keys, exp, expiresAt.Add(expiredGrace).UnixMilli(), token).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if ok == 0 {
		return domain.ErrTokenInvalid
	}
	return nil
}

func (s *TokenStore) Consume(ctx context.Context, token, fileID, hash string, action domain.TokenAction, now time.Time) (port.ConsumeResult, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{s.tokenKey(token)},
		fileID, hash, string(action), now.UnixMilli()).Int()
	if err != nil {
		return port.ConsumeInvalid, fmt.Errorf("failed to consume token: %w", err)
	}
	switch res {
	case 2:
		return port.ConsumeOK, nil
	case 1:
		return port.ConsumeExpired, nil
	default:
		return port.ConsumeInvalid, nil
	}
}

func decodeToken(value string, fields map[string]string) (*domain.Token, error) {
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt token expiry %q: %w", fields["exp"], err)
	}
	return &domain.Token{
		Token:       value,
		FileID:      fields["fileId"],
		Hash:        fields["hash"],
		UserID:      fields["userId"],
		Action:      domain.TokenAction(fields["action"]),
		ContentType: fields["contentType"],
		ExpiresAt:   time.UnixMilli(exp),
	}, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
