package db

import (
	"context"
	"time"

	"github.com/snapordereat/otpgate/internal/otp/entity"
)

func (s *DB) CreateAttempt(ctx context.Context, in entity.Attempt) (err error) {
	ctx, span := s.startSpan(ctx, "CreateAttempt")
	defer func() { s.endSpan(span, err) }()

	const query = `
		INSERT INTO otp_attempts (id, client_key, created_at)
		VALUES ($1, $2, $3)`

	_, err = s.conn.Exec(ctx, query, in.ID, in.ClientKey, in.CreatedAt)
	err = s.mapError(err)
	return err
}

func (s *DB) CountAttemptsSince(ctx context.Context, clientKey string, since time.Time) (count int64, err error) {
	ctx, span := s.startSpan(ctx, "CountAttemptsSince")
	defer func() { s.endSpan(span, err) }()

	const query = `
		SELECT COUNT(*)
		FROM otp_attempts
		WHERE client_key = $1 AND created_at >= $2`

	err = s.conn.QueryRow(ctx, query, clientKey, since).Scan(&count)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}

	return count, nil
}

func (s *DB) DeleteAttemptsByClientKey(ctx context.Context, clientKey string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteAttemptsByClientKey")
	defer func() { s.endSpan(span, err) }()

	const query = `DELETE FROM otp_attempts WHERE client_key = $1`

	_, err = s.conn.Exec(ctx, query, clientKey)
	err = s.mapError(err)
	return err
}
