package postgres

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/upb/classroom/models"
	"github.com/upb/classroom/repositories"
)

// maxListLimit caps ListRecent page sizes
const maxListLimit = 500

// AuthEventRepository implements the repositories.AuthEventRepository interface
type AuthEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuthEventRepository creates a new auth event repository
func NewAuthEventRepository(db *DB, logger *zap.Logger) repositories.AuthEventRepository {
	return &AuthEventRepository{db: db, logger: logger}
}

// Insert inserts a new auth event
func (r *AuthEventRepository) Insert(ctx context.Context, event *models.AuthEvent) error {
	query := `
		INSERT INTO auth_events (
			id, outcome, reason, email, account_id, subject_id,
			token_id, request_id, ip_address, user_agent, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var accountID sql.NullInt64
	if event.AccountID != nil {
		accountID = sql.NullInt64{Int64: *event.AccountID, Valid: true}
	}

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		event.ID,
		string(event.Outcome),
		nullString(event.Reason),
		nullString(event.Email),
		accountID,
		nullString(event.SubjectID),
		nullString(event.TokenID),
		nullString(event.RequestID),
		nullString(event.IPAddress),
		nullString(event.UserAgent),
		event.OccurredAt,
	)
	if err != nil {
		return translateError(err, "insert auth event")
	}

	r.logger.Debug("auth event inserted",
		zap.String("id", event.ID.String()),
		zap.String("outcome", string(event.Outcome)))
	return nil
}

// ListRecent returns up to limit events, newest first
func (r *AuthEventRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuthEvent, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT id, outcome, reason, email, account_id, subject_id,
		       token_id, request_id, ip_address, user_agent, occurred_at
		FROM auth_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, translateError(err, "list auth events")
	}
	defer rows.Close()

	var events []*models.AuthEvent
	for rows.Next() {
		var event models.AuthEvent
		var outcome string
		var reason, email, subject, token, request, ip, userAgent sql.NullString
		var accountID sql.NullInt64
		if err := rows.Scan(
			&event.ID, &outcome, &reason, &email, &accountID, &subject,
			&token, &request, &ip, &userAgent, &event.OccurredAt,
		); err != nil {
			return nil, translateError(err, "scan auth event")
		}

		event.Outcome = models.AuthOutcome(outcome)
		event.Reason = reason.String
		event.Email = email.String
		event.SubjectID = subject.String
		event.TokenID = token.String
		event.RequestID = request.String
		event.IPAddress = ip.String
		event.UserAgent = userAgent.String
		if accountID.Valid {
			id := accountID.Int64
			event.AccountID = &id
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "list auth events")
	}

	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
