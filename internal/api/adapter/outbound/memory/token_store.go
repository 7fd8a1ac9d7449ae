package memory

import (
	"context"
	"sync"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/metrics"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
)

// TokenStore keeps transfer tokens in memory. Expired tokens are removed by Sweep.
type TokenStore struct {
	mu      sync.Mutex
	byToken map[string]*domain.Token
	byScope map[domain.TokenScope]string
	stop    chan struct{}
	once    sync.Once
}

var _ port.TokenRepository = (*TokenStore)(nil)

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		byToken: make(map[string]*domain.Token),
		byScope: make(map[domain.TokenScope]string),
		stop:    make(chan struct{}),
	}
}

func (s *TokenStore) FindLive(_ context.Context, scope domain.TokenScope, now time.Time) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.byScope[scope]
	if !ok {
		return nil, nil
	}
	tok, ok := s.byToken[value]
	if !ok || tok.Expired(now) {
		return nil, nil
	}
	c := *tok
	return &c, nil
}

func (s *TokenStore) Save(_ context.Context, token *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *token
	s.byToken[c.Token] = &c
	s.byScope[c.Scope()] = c.Token
	return nil
}

func (s *TokenStore) Refresh(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.byToken[token]
	if !ok {
		return domain.ErrTokenInvalid
	}
	tok.ExpiresAt = expiresAt
	return nil
}

func (s *TokenStore) Consume(_ context.Context, token, fileID, hash string, action domain.TokenAction, now time.Time) (port.ConsumeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.byToken[token]
	if !ok || !tok.Matches(fileID, hash, action) {
		return port.ConsumeInvalid, nil
	}
	if tok.Expired(now) {
		s.removeLocked(tok)
		return port.ConsumeExpired, nil
	}
	s.removeLocked(tok)
	return port.ConsumeOK, nil
}

// Sweep deletes every token expired at now and returns how many were removed.
func (s *TokenStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, tok := range s.byToken {
		if tok.Expired(now) {
			s.removeLocked(tok)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored tokens.
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

// StartSweeper runs Sweep every interval until ctx ends or Stop is called.
func (s *TokenStore) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case now := <-ticker.C:
				if n := s.Sweep(now); n > 0 {
					metrics.RecordTokensSwept(n)
					logger.Debugw("Expired tokens swept", "count", n)
				}
			}
		}
	}()
}

// Stop ends the sweeper.
func (s *TokenStore) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *TokenStore) removeLocked(tok *domain.Token) {
	delete(s.byToken, tok.Token)
	scope := tok.Scope()
	if s.byScope[scope] == tok.Token {
		delete(s.byScope, scope)
	}
}
