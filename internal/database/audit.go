package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createAuditLog = `-- name: CreateAuditLog :one
INSERT INTO audit_logs (actor_id, action, target_model, target_pk, ip_address, metadata)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, actor_id, action, target_model, target_pk, ip_address, metadata, created_at`

type CreateAuditLogParams struct {
	ActorID     pgtype.UUID
	Action      string
	TargetModel string
	TargetPk    string
	IpAddress   pgtype.Text
	Metadata    []byte
}

func (q *Queries) CreateAuditLog(ctx context.Context, arg CreateAuditLogParams) (AuditLog, error) {
	row := q.db.QueryRow(ctx, createAuditLog, arg.ActorID, arg.Action, arg.TargetModel,
		arg.TargetPk, arg.IpAddress, arg.Metadata)
	var i AuditLog
	err := row.Scan(&i.ID, &i.ActorID, &i.Action, &i.TargetModel, &i.TargetPk, &i.IpAddress,
		&i.Metadata, &i.CreatedAt)
	return i, err
}

const listAuditLogs = `-- name: ListAuditLogs :many
SELECT id, actor_id, action, target_model, target_pk, ip_address, metadata, created_at
FROM audit_logs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

type ListAuditLogsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListAuditLogs(ctx context.Context, arg ListAuditLogsParams) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, listAuditLogs, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditLog
	for rows.Next() {
		var i AuditLog
		if err := rows.Scan(&i.ID, &i.ActorID, &i.Action, &i.TargetModel, &i.TargetPk,
			&i.IpAddress, &i.Metadata, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// --- Operational alerts ---

const alertColumns = `id, event_type, source, severity, message, metadata, fingerprint,
occurrence_count, first_seen_at, last_seen_at, resolved_at`

func scanAlert(row scanner, i *OperationalAlert) error {
	return row.Scan(&i.ID, &i.EventType, &i.Source, &i.Severity, &i.Message, &i.Metadata,
		&i.Fingerprint, &i.OccurrenceCount, &i.FirstSeenAt, &i.LastSeenAt, &i.ResolvedAt)
}

const createOperationalAlert = `-- name: CreateOperationalAlert :one
INSERT INTO operational_alerts (event_type, source, severity, message, metadata, fingerprint, occurrence_count, first_seen_at, last_seen_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
RETURNING ` + alertColumns

type CreateOperationalAlertParams struct {
	EventType   string
	Source      string
	Severity    string
	Message     string
	Metadata    []byte
	Fingerprint string
	SeenAt      time.Time
}

func (q *Queries) CreateOperationalAlert(ctx context.Context, arg CreateOperationalAlertParams) (OperationalAlert, error) {
	row := q.db.QueryRow(ctx, createOperationalAlert, arg.EventType, arg.Source, arg.Severity,
		arg.Message, arg.Metadata, arg.Fingerprint, arg.SeenAt)
	var i OperationalAlert
	err := scanAlert(row, &i)
	return i, err
}

const getUnresolvedAlertByFingerprint = `-- name: GetUnresolvedAlertByFingerprint :one
SELECT ` + alertColumns + `
FROM operational_alerts
WHERE fingerprint = $1 AND resolved_at IS NULL
ORDER BY last_seen_at DESC
LIMIT 1`

func (q *Queries) GetUnresolvedAlertByFingerprint(ctx context.Context, fingerprint string) (OperationalAlert, error) {
	row := q.db.QueryRow(ctx, getUnresolvedAlertByFingerprint, fingerprint)
	var i OperationalAlert
	err := scanAlert(row, &i)
	return i, err
}

const bumpOperationalAlert = `-- name: BumpOperationalAlert :one
UPDATE operational_alerts
SET occurrence_count = occurrence_count + 1, last_seen_at = $2, metadata = $3
WHERE id = $1
RETURNING ` + alertColumns

type BumpOperationalAlertParams struct {
	ID         uuid.UUID
	LastSeenAt time.Time
	Metadata   []byte
}

func (q *Queries) BumpOperationalAlert(ctx context.Context, arg BumpOperationalAlertParams) (OperationalAlert, error) {
	row := q.db.QueryRow(ctx, bumpOperationalAlert, arg.ID, arg.LastSeenAt, arg.Metadata)
	var i OperationalAlert
	err := scanAlert(row, &i)
	return i, err
}

const listUnresolvedAlerts = `-- name: ListUnresolvedAlerts :many
SELECT ` + alertColumns + `
FROM operational_alerts
WHERE resolved_at IS NULL AND ($1::text = '' OR severity = $1) AND last_seen_at >= $2
ORDER BY last_seen_at DESC`

type ListUnresolvedAlertsParams struct {
	Severity string
	Since    time.Time
}

func (q *Queries) ListUnresolvedAlerts(ctx context.Context, arg ListUnresolvedAlertsParams) ([]OperationalAlert, error) {
	rows, err := q.db.Query(ctx, listUnresolvedAlerts, arg.Severity, arg.Since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OperationalAlert
	for rows.Next() {
		var i OperationalAlert
		if err := scanAlert(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const resolveOperationalAlert = `-- name: ResolveOperationalAlert :one
UPDATE operational_alerts
SET resolved_at = $2
WHERE id = $1 AND resolved_at IS NULL
RETURNING ` + alertColumns

type ResolveOperationalAlertParams struct {
	ID         uuid.UUID
	ResolvedAt time.Time
}

func (q *Queries) ResolveOperationalAlert(ctx context.Context, arg ResolveOperationalAlertParams) (OperationalAlert, error) {
	row := q.db.QueryRow(ctx, resolveOperationalAlert, arg.ID, arg.ResolvedAt)
	var i OperationalAlert
	err := scanAlert(row, &i)
	return i, err
}
