package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/lib/pq"
)

const fileColumns = `file_id, parent_id, owner_id, file_name, file_size, mime_type, is_folder,
	chunk_hashes, chunk_sizes, status, storage_node, is_deleted, deleted_at, created_at, updated_at`

// FileStore persists files, chunk records and usage in Postgres.
type FileStore struct {
	db *sql.DB
}

var (
	_ port.FileRepository  = (*FileStore)(nil)
	_ port.UsageRepository = (*FileStore)(nil)
)

func NewFileStore(db *sql.DB) *FileStore {
	return &FileStore{db: db}
}

func (s *FileStore) CreateFile(ctx context.Context, f *domain.File) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		f.FileID, nullString(f.ParentID), f.OwnerID, f.FileName, f.FileSize, f.MimeType, f.IsFolder,
		hashArray(f.ChunkHashes), sizeArray(f.ChunkSizes), string(f.Status), f.StorageNode,
		f.IsDeleted, nullTime(f.DeletedAt), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert file %s: %w", f.FileID, err)
	}
	return nil
}

// UpdateFile never moves a file into or out of the complete state; that is CompleteFile's job.
func (s *FileStore) UpdateFile(ctx context.Context, f *domain.File) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET
			parent_id = $2, file_name = $3, file_size = $4, mime_type = $5,
			chunk_hashes = $6, chunk_sizes = $7, storage_node = $8,
			status = CASE
				WHEN status = 'complete' THEN status
				WHEN $9::text = 'complete' THEN status
				ELSE $9::text END,
			updated_at = $10
		 WHERE file_id = $1`,
		f.FileID, nullString(f.ParentID), f.FileName, f.FileSize, f.MimeType,
		hashArray(f.ChunkHashes), sizeArray(f.ChunkSizes), f.StorageNode, string(f.Status), f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update file %s: %w", f.FileID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrFileNotFound
	}
	return nil
}

func (s *FileStore) GetFile(ctx context.Context, fileID string) (*domain.File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE file_id = $1`, fileID)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFileNotFound
	}
	return f, err
}

func (s *FileStore) FindByName(ctx context.Context, ownerID string, parentID *string, fileName string) (*domain.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2 AND file_name = $3 AND NOT is_deleted
		 ORDER BY updated_at DESC, file_id DESC
		 LIMIT 1`,
		ownerID, nullString(parentID), fileName)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFileNotFound
	}
	return f, err
}

func (s *FileStore) ListChildren(ctx context.Context, ownerID, parentID string) ([]*domain.File, error) {
	return s.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM files WHERE owner_id = $1 AND parent_id = $2 ORDER BY file_id`,
		ownerID, parentID)
}

func (s *FileStore) ListTrashed(ctx context.Context, ownerID string, deletedBefore time.Time) ([]*domain.File, error) {
	return s.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE owner_id = $1 AND is_deleted AND deleted_at <= $2
		 ORDER BY file_id`,
		ownerID, deletedBefore)
}

func (s *FileStore) SetDeleted(ctx context.Context, fileIDs []string, deleted bool, at time.Time) error {
	if len(fileIDs) == 0 {
		return nil
	}
	var deletedAt interface{}
	if deleted {
		deletedAt = at
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET is_deleted = $2, deleted_at = $3 WHERE file_id = ANY($1)`,
		pq.Array(fileIDs), deleted, deletedAt)
	if err != nil {
		return fmt.Errorf("set deleted: %w", err)
	}
	return nil
}

func (s *FileStore) ChunkHashes(ctx context.Context, fileID string, hashes []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(hashes) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash FROM chunk_records WHERE file_id = $1 AND hash = ANY($2)`,
		fileID, pq.Array(hashes))
	if err != nil {
		return nil, fmt.Errorf("query chunk records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan chunk record: %w", err)
		}
		out[h] = struct{}{}
	}
	return out, rows.Err()
}

func (s *FileStore) RecordChunks(ctx context.Context, records []domain.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO chunk_records (file_id, hash, size) VALUES ($1, $2, $3)
			 ON CONFLICT (file_id, hash) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.FileID, r.Hash, r.Size); err != nil {
				return fmt.Errorf("insert chunk record %s/%s: %w", r.FileID, r.Hash, err)
			}
		}
		return nil
	})
}

// CompleteFile relies on the conditional UPDATE so that concurrent finalizers
// charge the owner exactly once, and only for the manifest they verified.
func (s *FileStore) CompleteFile(ctx context.Context, verified *domain.File) (bool, int64, error) {
	var (
		transitioned bool
		usage        int64
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var (
			owner string
			size  int64
		)
		err := tx.QueryRowContext(ctx,
			`UPDATE files SET status = 'complete', updated_at = now()
			 WHERE file_id = $1 AND status <> 'complete'
			   AND chunk_hashes = $2::text[] AND storage_node = $3
			 RETURNING owner_id, file_size`,
			verified.FileID, hashArray(verified.ChunkHashes), verified.StorageNode).Scan(&owner, &size)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			var status string
			if err := tx.QueryRowContext(ctx,
				`SELECT owner_id, status FROM files WHERE file_id = $1`, verified.FileID).Scan(&owner, &status); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return domain.ErrFileNotFound
				}
				return fmt.Errorf("read file owner: %w", err)
			}
			if status != string(domain.FileStatusComplete) {
				return domain.ErrManifestChanged
			}
			usage, err = getUsage(ctx, tx, owner)
			return err
		case err != nil:
			return fmt.Errorf("complete file %s: %w", verified.FileID, err)
		}

		transitioned = true
		return tx.QueryRowContext(ctx,
			`INSERT INTO user_usage (user_id, used_bytes) VALUES ($1, $2)
			 ON CONFLICT (user_id) DO UPDATE SET used_bytes = user_usage.used_bytes + EXCLUDED.used_bytes
			 RETURNING used_bytes`, owner, size).Scan(&usage)
	})
	if err != nil {
		return false, 0, err
	}
	return transitioned, usage, nil
}

func (s *FileStore) DeleteFile(ctx context.Context, fileID string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var (
			owner    string
			size     int64
			status   string
			isFolder bool
		)
		err := tx.QueryRowContext(ctx,
			`DELETE FROM files WHERE file_id = $1 RETURNING owner_id, file_size, status, is_folder`,
			fileID).Scan(&owner, &size, &status, &isFolder)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete file %s: %w", fileID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_records WHERE file_id = $1`, fileID); err != nil {
			return fmt.Errorf("delete chunk records of %s: %w", fileID, err)
		}
		if domain.FileStatus(status) == domain.FileStatusComplete && !isFolder {
			if _, err := tx.ExecContext(ctx,
				`UPDATE user_usage SET used_bytes = GREATEST(used_bytes - $2, 0) WHERE user_id = $1`,
				owner, size); err != nil {
				return fmt.Errorf("release usage of %s: %w", owner, err)
			}
		}
		return nil
	})
}

func (s *FileStore) GetUsage(ctx context.Context, userID string) (int64, error) {
	return getUsage(ctx, s.db, userID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getUsage(ctx context.Context, q queryRower, userID string) (int64, error) {
	var used int64
	err := q.QueryRowContext(ctx, `SELECT used_bytes FROM user_usage WHERE user_id = $1`, userID).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage of %s: %w", userID, err)
	}
	return used, nil
}

func (s *FileStore) queryFiles(ctx context.Context, query string, args ...interface{}) ([]*domain.File, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row scanner) (*domain.File, error) {
	var (
		f         domain.File
		parentID  sql.NullString
		status    string
		deletedAt sql.NullTime
		hashes    pq.StringArray
		sizes     pq.Int64Array
	)
	err := row.Scan(&f.FileID, &parentID, &f.OwnerID, &f.FileName, &f.FileSize, &f.MimeType, &f.IsFolder,
		&hashes, &sizes, &status, &f.StorageNode, &f.IsDeleted, &deletedAt, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	if parentID.Valid {
		p := parentID.String
		f.ParentID = &p
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		f.DeletedAt = &t
	}
	f.Status = domain.FileStatus(status)
	f.ChunkHashes = []string(hashes)
	f.ChunkSizes = []int64(sizes)
	return &f, nil
}

// Arrays are NOT NULL columns; a nil slice would be sent as NULL.
func hashArray(v []string) pq.StringArray {
	if v == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(v)
}

func sizeArray(v []int64) pq.Int64Array {
	if v == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(v)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
