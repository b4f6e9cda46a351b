package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"fraudservice/internal/model"
)

// SQLRepository stores the IP-to-country table. It works against postgres
// and sqlite; queries are written with ? placeholders and rebound per driver.
type SQLRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSQLRepository(db *sqlx.DB, logger *zap.Logger) *SQLRepository {
	return &SQLRepository{
		db:     db,
		logger: logger,
	}
}

// ReplaceGeoRanges swaps the whole table inside one transaction, so readers
// never observe a partially written snapshot.
func (r *SQLRepository) ReplaceGeoRanges(ctx context.Context, ranges []model.GeoRange) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ip_country"); err != nil {
		return fmt.Errorf("clearing ip_country: %w", err)
	}

	query := tx.Rebind(`
        INSERT INTO ip_country (position, lower_bound_ip_address, upper_bound_ip_address, country)
        VALUES (?, ?, ?, ?)
    `)

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, geoRange := range ranges {
		_, err = stmt.ExecContext(ctx,
			int64(i),
			int64(geoRange.Lower),
			int64(geoRange.Upper),
			geoRange.Country)
		if err != nil {
			r.logger.Error("failed to insert geo range",
				zap.Int("position", i),
				zap.String("country", geoRange.Country),
				zap.Error(err))
			return err
		}
	}

	return tx.Commit()
}

// LoadGeoRanges returns the table in stored order.
func (r *SQLRepository) LoadGeoRanges(ctx context.Context) ([]model.GeoRange, error) {
	query := `
        SELECT position, lower_bound_ip_address, upper_bound_ip_address, country
        FROM ip_country
        ORDER BY position ASC
    `

	var ranges []model.GeoRange
	if err := r.db.SelectContext(ctx, &ranges, query); err != nil {
		r.logger.Error("failed to load geo ranges", zap.Error(err))
		return nil, err
	}
	return ranges, nil
}

func (r *SQLRepository) GetRangesCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT count(*) FROM ip_country")
	return count, err
}
