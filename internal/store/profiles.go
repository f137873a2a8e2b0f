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

const profileColumns = `id, email, is_deleted, deleted_at, reactivated_at, created_at, updated_at`

func profileDest(p *models.Profile) []any {
	return []any{
		&p.ID,
		&p.Email,
		&p.IsDeleted,
		&p.DeletedAt,
		&p.ReactivatedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

// UpsertProfile mirrors a user of the hosted auth service into profiles.
func UpsertProfile(ctx context.Context, db database.Querier, id uuid.UUID, email string) (*models.Profile, error) {
	profile := &models.Profile{}

	query := `
		INSERT INTO profiles (id, email, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, updated_at = NOW()
		RETURNING ` + profileColumns

	err := db.QueryRowContext(ctx, query, id, email).Scan(profileDest(profile)...)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	return profile, nil
}

func GetProfile(ctx context.Context, db database.Querier, id uuid.UUID) (*models.Profile, error) {
	profile := &models.Profile{}

	err := db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id,
	).Scan(profileDest(profile)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return profile, nil
}

func SoftDeleteProfile(ctx context.Context, db database.Querier, id uuid.UUID) error {
	result, err := db.ExecContext(ctx,
		`UPDATE profiles SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("soft delete profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProfileNotFound
	}

	return nil
}

// ReactivateProfile clears a soft delete. It reports whether the profile
// was deleted before the call; a missing profile is not an error.
func ReactivateProfile(ctx context.Context, db database.Querier, id uuid.UUID) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE profiles
		 SET is_deleted = FALSE, deleted_at = NULL, reactivated_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND is_deleted`, id)
	if err != nil {
		return false, fmt.Errorf("reactivate profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
