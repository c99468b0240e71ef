package migration

import (
	"context"
	"database/sql"
	"fmt"
)

type tierSeed struct {
	Code             string
	Name             string
	VehicleAllowance int
	GraceOverage     int
}

// seedReferenceData upserts the immutable tier catalog. These rows are read by
// support tooling and dashboards; the engine itself snapshots tier data onto
// setup tokens at issuance time.
func seedReferenceData(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin reference seed transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := seedTiers(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reference seed transaction: %w", err)
	}
	return nil
}

func seedTiers(ctx context.Context, tx *sql.Tx) error {
	seeds := []tierSeed{
		{Code: "starter", Name: "Starter", VehicleAllowance: 5, GraceOverage: 3},
		{Code: "fleet", Name: "Fleet", VehicleAllowance: 15, GraceOverage: 3},
		{Code: "enterprise", Name: "Enterprise", VehicleAllowance: 50, GraceOverage: 5},
	}

	const stmt = `
		INSERT INTO tiers (code, name, vehicle_allowance, grace_overage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name,
		    vehicle_allowance = EXCLUDED.vehicle_allowance,
		    grace_overage = EXCLUDED.grace_overage
	`

	for _, seed := range seeds {
		if _, err := tx.ExecContext(ctx, stmt, seed.Code, seed.Name, seed.VehicleAllowance, seed.GraceOverage); err != nil {
			return fmt.Errorf("seed tier %s: %w", seed.Code, err)
		}
	}
	return nil
}
