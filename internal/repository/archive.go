package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fanoutlabs/graph-broker/internal/model"
)

// ArchiveRepo copies accepted webhook events and completed
// authorization runs into MySQL for retention beyond the store's
// 24-hour event horizon. The archive is an optional add-on: when no
// database is configured the rest of the broker runs without it, and
// archive failures never affect the ingest path.
type ArchiveRepo struct{ DB *sql.DB }

func NewArchiveRepo(db *sql.DB) *ArchiveRepo { return &ArchiveRepo{DB: db} }

// InsertEvent appends one normalized event row. Replays of the same
// event id land as fresh rows on purpose; the archive is an audit
// trail, not a deduplicated view.
func (r *ArchiveRepo) InsertEvent(ctx context.Context, ev model.WebhookEvent) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO webhook_events (event_id, event_type, account_id, event_time, payload, received_at) VALUES (?,?,?,?,?,?)",
		ev.EventID, ev.Type, ev.AccountID, ev.Timestamp, []byte(ev.Payload), ev.ReceivedAt)
	return err
}

// InsertConnection records a completed authorization run for a tenant.
func (r *ArchiveRepo) InsertConnection(ctx context.Context, alias string, pages, linked int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO oauth_connections (tenant_alias, page_count, linked_count, connected_at) VALUES (?,?,?,?)",
		alias, pages, linked, at)
	return err
}
