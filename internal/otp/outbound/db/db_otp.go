package db

import (
	"context"

	"github.com/snapordereat/otpgate/internal/otp/entity"
	"github.com/snapordereat/otpgate/internal/pkg/goerror"
)

func (s *DB) CreateOtp(ctx context.Context, in entity.Otp) (err error) {
	ctx, span := s.startSpan(ctx, "CreateOtp")
	defer func() { s.endSpan(span, err) }()

	const query = `
		INSERT INTO otps (id, owner_key, code, verified, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = s.conn.Exec(ctx, query, in.ID, in.OwnerKey, in.Code, in.Verified, in.CreatedAt, in.ExpiresAt)
	err = s.mapError(err)
	return err
}

func (s *DB) GetOtpByID(ctx context.Context, id int64) (otp *entity.Otp, err error) {
	ctx, span := s.startSpan(ctx, "GetOtpByID")
	defer func() { s.endSpan(span, err) }()

	const query = `
		SELECT id, owner_key, code, verified, created_at, expires_at
		FROM otps
		WHERE id = $1`

	var out entity.Otp
	err = s.conn.QueryRow(ctx, query, id).
		Scan(&out.ID, &out.OwnerKey, &out.Code, &out.Verified, &out.CreatedAt, &out.ExpiresAt)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	return &out, nil
}

func (s *DB) GetOtpByOwnerKey(ctx context.Context, ownerKey string) (otp *entity.Otp, err error) {
	ctx, span := s.startSpan(ctx, "GetOtpByOwnerKey")
	defer func() { s.endSpan(span, err) }()

	const query = `
		SELECT id, owner_key, code, verified, created_at, expires_at
		FROM otps
		WHERE owner_key = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var out entity.Otp
	err = s.conn.QueryRow(ctx, query, ownerKey).
		Scan(&out.ID, &out.OwnerKey, &out.Code, &out.Verified, &out.CreatedAt, &out.ExpiresAt)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	return &out, nil
}

func (s *DB) MarkOtpVerified(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkOtpVerified")
	defer func() { s.endSpan(span, err) }()

	const query = `UPDATE otps SET verified = TRUE WHERE id = $1`

	tag, err := s.conn.Exec(ctx, query, id)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		err = goerror.ErrNotFound
		return err
	}

	return nil
}

func (s *DB) DeleteOtpByID(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteOtpByID")
	defer func() { s.endSpan(span, err) }()

	const query = `DELETE FROM otps WHERE id = $1`

	_, err = s.conn.Exec(ctx, query, id)
	err = s.mapError(err)
	return err
}

func (s *DB) DeleteOtpByOwnerKey(ctx context.Context, ownerKey string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteOtpByOwnerKey")
	defer func() { s.endSpan(span, err) }()

	const query = `DELETE FROM otps WHERE owner_key = $1 AND verified = FALSE`

	_, err = s.conn.Exec(ctx, query, ownerKey)
	err = s.mapError(err)
	return err
}
