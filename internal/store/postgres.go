package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/models"
)

// PostgresArchive stores delivery records in PostgreSQL.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive creates a new PostgreSQL archive with a connection pool
// and ensures the schema exists.
func NewPostgresArchive(ctx context.Context, databaseURL string) (*PostgresArchive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deliveries (
			id         TEXT PRIMARY KEY,
			identity   TEXT NOT NULL,
			channel_id TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			mode       TEXT NOT NULL,
			error      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresArchive{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresArchive) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresArchive) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RecordDelivery inserts one terminal dispatch record.
func (s *PostgresArchive) RecordDelivery(ctx context.Context, rec *models.DeliveryRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deliveries (id, identity, channel_id, status, mode, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Identity, rec.ChannelID, rec.Status, rec.Mode, rec.Error, rec.CreatedAt)
	return err
}

// RecentDeliveries returns the newest delivery records, newest first.
func (s *PostgresArchive) RecentDeliveries(ctx context.Context, limit int) ([]models.DeliveryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, identity, channel_id, status, mode, error, created_at
		FROM deliveries
		ORDER BY created_at DESC
		LIMIT $1
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
func (s *PostgresArchive) CountDeliveries(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deliveries`).Scan(&total)
	return total, err
}
