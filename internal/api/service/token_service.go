package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/metrics"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
)

// tokenBytes gives 256 bits of entropy per token.
const tokenBytes = 32

// tokenService issues and consumes single-use transfer tokens.
type tokenService struct {
	core *TransferServiceImpl
	repo port.TokenRepository
	ttl  time.Duration
}

// newTokenService creates the token use-case service.
func newTokenService(core *TransferServiceImpl, repo port.TokenRepository, ttl time.Duration) *tokenService {
	if ttl <= 0 {
		ttl = domain.DefaultTokenTTL
	}
	return &tokenService{core: core, repo: repo, ttl: ttl}
}

// issue returns a live token for the scope, refreshing and reusing an existing one.
func (s *tokenService) issue(ctx context.Context, fileID, hash, userID string, action domain.TokenAction, contentType string) (*domain.Token, error) {
	now := s.core.now()
	expiresAt := now.Add(s.ttl)
	scope := domain.TokenScope{FileID: fileID, Hash: hash, UserID: userID, Action: action}

	existing, err := s.repo.FindLive(ctx, scope, now)
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	if existing != nil {
		err := s.repo.Refresh(ctx, existing.Token, expiresAt)
		var tokErr *domain.TokenError
		switch {
		case err == nil:
			existing.ExpiresAt = expiresAt
			metrics.RecordTokenIssued(string(action), true)
			return existing, nil
		case errors.As(err, &tokErr):
			// Consumed or swept since the lookup; mint a fresh one.
			logger.Debugw("Live token vanished before refresh", "file_id", fileID, "hash", hash, "action", string(action))
		default:
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}
	}

	value, err := newTokenValue()
	if err != nil {
		return nil, err
	}
	tok := &domain.Token{
		Token:       value,
		FileID:      fileID,
		Hash:        hash,
		UserID:      userID,
		Action:      action,
		ContentType: contentType,
		ExpiresAt:   expiresAt,
	}
	if err := s.repo.Save(ctx, tok); err != nil {
		return nil, fmt.Errorf("token save failed: %w", err)
	}
	metrics.RecordTokenIssued(string(action), false)
	return tok, nil
}

// validate consumes the token. The record is deleted before the caller proceeds.
// Any mismatch or absence yields domain.ErrTokenInvalid.
func (s *tokenService) validate(ctx context.Context, token, fileID, hash string, action domain.TokenAction) error {
	if token == "" || fileID == "" || hash == "" {
		metrics.RecordTokenRejected(string(action), string(domain.TokenInvalid))
		return domain.ErrTokenInvalid
	}

	res, err := s.repo.Consume(ctx, token, fileID, hash, action, s.core.now())
	if err != nil {
		// Storage failures fail closed as well, but are not a client error.
		logger.Errorw("Token consume failed", "file_id", fileID, "hash", hash, "error", err.Error())
		return fmt.Errorf("token validation unavailable: %w", err)
	}

	switch res {
	case port.ConsumeOK:
		return nil
	case port.ConsumeExpired:
		metrics.RecordTokenRejected(string(action), string(domain.TokenExpired))
		return domain.ErrTokenExpired
	default:
		metrics.RecordTokenRejected(string(action), string(domain.TokenInvalid))
		return domain.ErrTokenInvalid
	}
}

// newTokenValue returns a hex encoded crypto random token.
func newTokenValue() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token generation failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
