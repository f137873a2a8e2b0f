package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

// UpsertDriveToken stores the user's Drive credentials. A nil refresh token
// keeps the stored one, since Google only returns it on first consent.
func UpsertDriveToken(ctx context.Context, db database.Querier, token models.DriveToken) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO user_drive_tokens (user_id, access_token, refresh_token, expiry_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET access_token = EXCLUDED.access_token,
		     refresh_token = COALESCE(EXCLUDED.refresh_token, user_drive_tokens.refresh_token),
		     expiry_date = EXCLUDED.expiry_date,
		     updated_at = NOW()`,
		token.UserID, token.AccessToken, token.RefreshToken, token.ExpiryDate)
	if err != nil {
		return fmt.Errorf("upsert drive token: %w", err)
	}
	return nil
}

func GetDriveToken(ctx context.Context, db database.Querier, userID uuid.UUID) (*models.DriveToken, error) {
	token := &models.DriveToken{}

	err := db.QueryRowContext(ctx,
		`SELECT user_id, access_token, refresh_token, expiry_date, updated_at
		 FROM user_drive_tokens WHERE user_id = $1`, userID,
	).Scan(
		&token.UserID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.ExpiryDate,
		&token.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrDriveNotConnected
		}
		return nil, fmt.Errorf("get drive token: %w", err)
	}

	return token, nil
}
