package db

import (
	"context"
	"fmt"

	"github.com/david/bid-finder/internal/models"
)

// InsertAwards appends award history rows. Awards have no natural key from
// the upstream, so refreshes clear the vendor's rows first.
func (s *Store) InsertAwards(ctx context.Context, awards []models.Award) error {
	for _, a := range awards {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO awards (awarding_agency, naics_code, vendor_uei, vendor_name, amount, award_date, description)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, a.AwardingAgency, a.NAICSCode, a.VendorUEI, a.VendorName, a.Amount, a.AwardDate, a.Description)
		if err != nil {
			return fmt.Errorf("failed to insert award: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteAwardsByVendor(ctx context.Context, vendorUEI string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM awards WHERE vendor_uei = $1", vendorUEI)
	if err != nil {
		return fmt.Errorf("failed to delete awards: %w", err)
	}
	return nil
}

// CountAwardsByNAICS counts the vendor's past awards in any of the codes.
func (s *Store) CountAwardsByNAICS(ctx context.Context, vendorUEI string, naicsCodes []string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM awards WHERE vendor_uei = $1 AND naics_code = ANY($2)
	`, vendorUEI, naicsCodes).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count awards by naics: %w", err)
	}
	return n, nil
}

// CountAwardsByAgency counts the vendor's past awards from the agency.
func (s *Store) CountAwardsByAgency(ctx context.Context, vendorUEI, agency string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM awards WHERE vendor_uei = $1 AND awarding_agency ILIKE '%' || $2 || '%'
	`, vendorUEI, agency).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count awards by agency: %w", err)
	}
	return n, nil
}
