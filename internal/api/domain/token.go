package domain

import "time"

// DefaultTokenTTL bounds how long an issued transfer token stays valid.
const DefaultTokenTTL = time.Hour

// TokenAction scopes a token to one direction of transfer.
type TokenAction string

const (
	TokenActionUpload   TokenAction = "upload"
	TokenActionDownload TokenAction = "download"
)

// Valid reports whether the action is one of the known actions.
func (a TokenAction) Valid() bool {
	return a == TokenActionUpload || a == TokenActionDownload
}

// Token is a single-use capability for one (file, chunk, action) triple.
type Token struct {
	Token       string      `json:"token"`
	FileID      string      `json:"fileId"`
	Hash        string      `json:"hash"`
	UserID      string      `json:"userId"`
	Action      TokenAction `json:"action"`
	ContentType string      `json:"contentType,omitempty"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

// Expired reports whether the token is no longer usable at now.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Matches reports whether the token grants action on (fileID, hash).
func (t *Token) Matches(fileID, hash string, action TokenAction) bool {
	return t.FileID == fileID && t.Hash == hash && t.Action == action
}

// TokenScope identifies the reuse slot of a token.
type TokenScope struct {
	FileID string
	Hash   string
	UserID string
	Action TokenAction
}

// Scope returns the reuse slot the token occupies.
func (t *Token) Scope() TokenScope {
	return TokenScope{FileID: t.FileID, Hash: t.Hash, UserID: t.UserID, Action: t.Action}
}
