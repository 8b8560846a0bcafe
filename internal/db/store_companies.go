package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/david/bid-finder/internal/models"
)

const companyCols = `id, name, legal_structure, address_line, city, state, zip, uei,
	naics_codes, set_asides, capabilities, contract_value_min, contract_value_max,
	geographic_preferences, profile_version, created_at, updated_at`

func scanCompany(scan func(dest ...interface{}) error) (models.Company, error) {
	var c models.Company
	err := scan(
		&c.ID, &c.Name, &c.LegalStructure, &c.AddressLine, &c.City, &c.State, &c.Zip, &c.UEI,
		&c.NAICSCodes, &c.SetAsides, &c.Capabilities, &c.ContractValueMin, &c.ContractValueMax,
		&c.GeographicPreferences, &c.ProfileVersion, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (s *Store) CreateCompany(ctx context.Context, c models.Company) (models.Company, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO companies (
			name, legal_structure, address_line, city, state, zip, uei,
			naics_codes, set_asides, capabilities, contract_value_min, contract_value_max,
			geographic_preferences
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING `+companyCols,
		c.Name, c.LegalStructure, c.AddressLine, c.City, c.State, c.Zip, c.UEI,
		c.NAICSCodes, c.SetAsides, c.Capabilities, c.ContractValueMin, c.ContractValueMax,
		c.GeographicPreferences,
	)
	created, err := scanCompany(row.Scan)
	if err != nil {
		return created, fmt.Errorf("failed to create company: %w", err)
	}
	return created, nil
}

func (s *Store) GetCompany(ctx context.Context, id uuid.UUID) (models.Company, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+companyCols+" FROM companies WHERE id = $1", id)
	c, err := scanCompany(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

// UpdateCompany writes the profile and bumps profile_version only when a
// scoring-relevant field actually changed: naics_codes, set_asides,
// geographic_preferences, contract_value_min, contract_value_max, or
// capabilities. The CASE compares against the pre-update row.
func (s *Store) UpdateCompany(ctx context.Context, c models.Company) (models.Company, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE companies SET
			name = $2, legal_structure = $3, address_line = $4, city = $5, state = $6,
			zip = $7, uei = $8, naics_codes = $9, set_asides = $10, capabilities = $11,
			contract_value_min = $12, contract_value_max = $13, geographic_preferences = $14,
			profile_version = profile_version + CASE WHEN
				(naics_codes, set_asides, geographic_preferences,
				 contract_value_min, contract_value_max, capabilities)
				IS DISTINCT FROM
				($9::text[], $10::text[], $14::text[], $12::numeric, $13::numeric, $11::text)
				THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+companyCols,
		c.ID, c.Name, c.LegalStructure, c.AddressLine, c.City, c.State,
		c.Zip, c.UEI, c.NAICSCodes, c.SetAsides, c.Capabilities,
		c.ContractValueMin, c.ContractValueMax, c.GeographicPreferences,
	)
	updated, err := scanCompany(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return updated, ErrNotFound
	}
	if err != nil {
		return updated, fmt.Errorf("failed to update company: %w", err)
	}
	return updated, nil
}

// IncrementProfileVersion bumps the version unconditionally and returns the
// new value. Used by callers that mutate scoring-relevant fields out of band.
func (s *Store) IncrementProfileVersion(ctx context.Context, id uuid.UUID) (int, error) {
	var version int
	err := s.pool.QueryRow(ctx, `
		UPDATE companies SET profile_version = profile_version + 1, updated_at = NOW()
		WHERE id = $1 RETURNING profile_version
	`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment profile version: %w", err)
	}
	return version, nil
}
