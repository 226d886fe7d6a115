package store

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateImage(ctx context.Context, img *Image) error
	GetImage(ctx context.Context, id string) (*Image, error)
	ListImages(ctx context.Context) ([]*Image, error)
	DeleteImage(ctx context.Context, id string) error
	UpdateAnnotations(ctx context.Context, id string, doc []byte) error
	CountImages(ctx context.Context) (int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateImage(ctx context.Context, img *Image) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO images (id, filename, path, thumb_path, width, height, annotations, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, img.ID, img.Filename, img.Path, nullString(img.ThumbPath), img.Width, img.Height,
		nullBytes(img.Annotations), img.UploadedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetImage(ctx context.Context, id string) (*Image, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, filename, path, thumb_path, width, height, annotations, uploaded_at
		FROM images WHERE id = ?
	`, id)
	return r.scanImage(row)
}

func (r *SQLiteRepository) scanImage(row *sql.Row) (*Image, error) {
	var img Image
	var thumbPath, annotations sql.NullString
	var uploadedAt string

	err := row.Scan(&img.ID, &img.Filename, &img.Path, &thumbPath, &img.Width, &img.Height, &annotations, &uploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	img.ThumbPath = thumbPath.String
	if annotations.Valid {
		img.Annotations = []byte(annotations.String)
	}
	img.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)
	return &img, nil
}

func (r *SQLiteRepository) ListImages(ctx context.Context) ([]*Image, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, path, thumb_path, width, height, annotations, uploaded_at
		FROM images ORDER BY uploaded_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*Image
	for rows.Next() {
		var img Image
		var thumbPath, annotations sql.NullString
		var uploadedAt string

		if err := rows.Scan(&img.ID, &img.Filename, &img.Path, &thumbPath, &img.Width, &img.Height, &annotations, &uploadedAt); err != nil {
			return nil, err
		}
		img.ThumbPath = thumbPath.String
		if annotations.Valid {
			img.Annotations = []byte(annotations.String)
		}
		img.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)
		images = append(images, &img)
	}
	return images, rows.Err()
}

func (r *SQLiteRepository) DeleteImage(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpdateAnnotations(ctx context.Context, id string, doc []byte) error {
	_, err := r.db.ExecContext(ctx, "UPDATE images SET annotations = ? WHERE id = ?", nullBytes(doc), id)
	return err
}

func (r *SQLiteRepository) CountImages(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
