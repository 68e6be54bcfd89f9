package assets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrAssetNotFound  = errors.New("assets: asset not found")
	ErrAlreadyCharged = errors.New("assets: period already charged")
)

type Repository interface {
	Create(ctx context.Context, asset Asset) error
	Get(ctx context.Context, id uuid.UUID) (Asset, error)
	ListActive(ctx context.Context) ([]Asset, error)
	AddAccumulated(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	SubAccumulated(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error

	CreateCharge(ctx context.Context, charge Charge) error
	HasCharge(ctx context.Context, assetID uuid.UUID, period string) (bool, error)
	SetChargeJournal(ctx context.Context, id uuid.UUID, journalID int64) error
	DeleteCharge(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const assetColumns = `id, name, cost, salvage_value, useful_life_months, acquired_at, accumulated, disposed, created_by, created_at, updated_at`

func (r *repository) Create(ctx context.Context, asset Asset) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO fixed_assets (id, name, cost, salvage_value, useful_life_months, acquired_at, accumulated, disposed, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, NOW(), NOW())`,
		asset.ID, asset.Name, asset.Cost, asset.SalvageValue, asset.UsefulLifeMonths,
		asset.AcquiredAt, asset.Accumulated, asset.CreatedBy)
	return err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Asset, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE id = $1`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, ErrAssetNotFound
	}
	return asset, err
}

func (r *repository) ListActive(ctx context.Context) ([]Asset, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE disposed = FALSE ORDER BY acquired_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, rows.Err()
}

func (r *repository) AddAccumulated(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE fixed_assets SET accumulated = accumulated + $2, updated_at = NOW() WHERE id = $1`, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (r *repository) SubAccumulated(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE fixed_assets SET accumulated = accumulated - $2, updated_at = NOW() WHERE id = $1`, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (r *repository) CreateCharge(ctx context.Context, charge Charge) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO depreciation_charges (id, asset_id, period, amount, created_at)
VALUES ($1, $2, $3, $4, NOW())`,
		charge.ID, charge.AssetID, charge.Period, charge.Amount)
	return err
}

func (r *repository) HasCharge(ctx context.Context, assetID uuid.UUID, period string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM depreciation_charges WHERE asset_id = $1 AND period = $2)`,
		assetID, period).Scan(&exists)
	return exists, err
}

func (r *repository) SetChargeJournal(ctx context.Context, id uuid.UUID, journalID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE depreciation_charges SET journal_id = $2 WHERE id = $1`, id, journalID)
	return err
}

func (r *repository) DeleteCharge(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM depreciation_charges WHERE id = $1`, id)
	return err
}

func scanAsset(row pgx.Row) (Asset, error) {
	var asset Asset
	err := row.Scan(&asset.ID, &asset.Name, &asset.Cost, &asset.SalvageValue, &asset.UsefulLifeMonths,
		&asset.AcquiredAt, &asset.Accumulated, &asset.Disposed, &asset.CreatedBy, &asset.CreatedAt, &asset.UpdatedAt)
	return asset, err
}
