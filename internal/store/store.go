package store

import (
	"context"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/models"
)

// Archive is the optional durable record of terminal dispatches, kept for
// audit and diagnostics. Both PostgresArchive and SQLiteArchive implement
// this interface; deployments without a database run with a nil Archive.
type Archive interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Delivery records
	RecordDelivery(ctx context.Context, rec *models.DeliveryRecord) error
	RecentDeliveries(ctx context.Context, limit int) ([]models.DeliveryRecord, error)
	CountDeliveries(ctx context.Context) (int64, error)
}
