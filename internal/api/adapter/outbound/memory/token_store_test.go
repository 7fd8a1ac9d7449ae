package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadToken(value string, expires time.Time) *domain.Token {
	return &domain.Token{
		Token:     value,
		FileID:    "f1",
		Hash:      "h1",
		UserID:    "u1",
		Action:    domain.TokenActionUpload,
		ExpiresAt: expires,
	}
}

func TestTokenStore_Consume(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		token  *domain.Token
		value  string
		fileID string
		hash   string
		action domain.TokenAction
		want   port.ConsumeResult
	}{
		{name: "Valid", token: uploadToken("t1", now.Add(time.Minute)), value: "t1", fileID: "f1", hash: "h1", action: domain.TokenActionUpload, want: port.ConsumeOK},
		{name: "Unknown", token: uploadToken("t1", now.Add(time.Minute)), value: "nope", fileID: "f1", hash: "h1", action: domain.TokenActionUpload, want: port.ConsumeInvalid},
		{name: "WrongHash", token: uploadToken("t1", now.Add(time.Minute)), value: "t1", fileID: "f1", hash: "h2", action: domain.TokenActionUpload, want: port.ConsumeInvalid},
		{name: "WrongAction", token: uploadToken("t1", now.Add(time.Minute)), value: "t1", fileID: "f1", hash: "h1", action: domain.TokenActionDownload, want: port.ConsumeInvalid},
		{name: "Expired", token: uploadToken("t1", now.Add(-time.Second)), value: "t1", fileID: "f1", hash: "h1", action: domain.TokenActionUpload, want: port.ConsumeExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTokenStore()
			require.NoError(t, s.Save(context.Background(), tt.token))

			got, err := s.Consume(context.Background(), tt.value, tt.fileID, tt.hash, tt.action, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenStore_SingleUseUnderRace(t *testing.T) {
	s := NewTokenStore()
	now := time.Now()
	require.NoError(t, s.Save(context.Background(), uploadToken("t1", now.Add(time.Minute))))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := s.Consume(context.Background(), "t1", "f1", "h1", domain.TokenActionUpload, now)
			if res == port.ConsumeOK {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Zero(t, s.Len())
}

func TestTokenStore_FindLiveAndRefresh(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore()
	now := time.Now()
	tok := uploadToken("t1", now.Add(time.Minute))
	require.NoError(t, s.Save(ctx, tok))

	live, err := s.FindLive(ctx, tok.Scope(), now)
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, "t1", live.Token)

	later := now.Add(time.Hour)
	require.NoError(t, s.Refresh(ctx, "t1", later))
	live, _ = s.FindLive(ctx, tok.Scope(), now.Add(30*time.Minute))
	require.NotNil(t, live)
	assert.True(t, live.ExpiresAt.Equal(later))

	none, err := s.FindLive(ctx, tok.Scope(), later.Add(time.Second))
	require.NoError(t, err)
	assert.Nil(t, none)

	assert.ErrorIs(t, s.Refresh(ctx, "missing", later), domain.ErrTokenInvalid)
}

func TestTokenStore_SaveReplacesScope(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore()
	now := time.Now()
	require.NoError(t, s.Save(ctx, uploadToken("old", now.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, uploadToken("new", now.Add(time.Minute))))

	live, _ := s.FindLive(ctx, uploadToken("", now).Scope(), now)
	require.NotNil(t, live)
	assert.Equal(t, "new", live.Token)
}

func TestTokenStore_Sweep(t *testing.T) {
	s := NewTokenStore()
	now := time.Now()
	require.NoError(t, s.Save(context.Background(), uploadToken("dead", now.Add(-time.Minute))))
	live := uploadToken("live", now.Add(time.Minute))
	live.Hash = "h2"
	require.NoError(t, s.Save(context.Background(), live))

	assert.Equal(t, 1, s.Sweep(now))
	assert.Equal(t, 1, s.Len())
}

func TestTokenStore_StartSweeper(t *testing.T) {
	s := NewTokenStore()
	require.NoError(t, s.Save(context.Background(), uploadToken("dead", time.Now().Add(-time.Minute))))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartSweeper(ctx, 5*time.Millisecond)
	defer s.Stop()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}
