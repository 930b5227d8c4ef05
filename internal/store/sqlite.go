package store

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/models"
)

// SQLiteArchive stores delivery records in a local SQLite file. Used for
// development deployments that have no PostgreSQL.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (or creates) a SQLite archive at path.
func NewSQLiteArchive(ctx context.Context, path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS deliveries (
			id         TEXT PRIMARY KEY,
			identity   TEXT NOT NULL,
			channel_id TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			mode       TEXT NOT NULL,
			error      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteArchive{db: db}, nil
}

// Close closes the database.
func (s *SQLiteArchive) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteArchive) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordDelivery inserts one terminal dispatch record.
func (s *SQLiteArchive) RecordDelivery(ctx context.Context, rec *models.DeliveryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, identity, channel_id, status, mode, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Identity, rec.ChannelID, rec.Status, rec.Mode, rec.Error, rec.CreatedAt)
	return err
}

// RecentDeliveries returns the newest delivery records, newest first.
func (s *SQLiteArchive) RecentDeliveries(ctx context.Context, limit int) ([]models.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, channel_id, status, mode, error, created_at
		FROM deliveries
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []models.DeliveryRecord
	for rows.Next() {
		var rec models.DeliveryRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Identity,
			&rec.ChannelID,
			&rec.Status,
			&rec.Mode,
			&rec.Error,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CountDeliveries returns the total number of archived dispatches.
func (s *SQLiteArchive) CountDeliveries(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deliveries`).Scan(&total)
	return total, err
}
