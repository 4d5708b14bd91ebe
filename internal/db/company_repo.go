package db

import (
	"context"

	"leadloop/internal/types"
)

// CompanyRepository provides read access to the companies table. The sweep
// only ever reads tenants; company lifecycle is owned by the signup flow.
type CompanyRepository struct {
	db DBTX
}

// NewCompanyRepository creates a new CompanyRepository backed by the given
// database connection (pool or transaction).
func NewCompanyRepository(db DBTX) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// ListActive returns all companies whose subscription is in a sweepable
// state (active or trialing), ordered by creation time for stable iteration
// across passes.
func (r *CompanyRepository) ListActive(ctx context.Context) ([]types.Company, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, plan, status, timezone, COALESCE(stripe_customer_id, ''), created_at
		 FROM companies
		 WHERE status IN ('active', 'trialing')
		 ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query companies", err)
	}
	defer rows.Close()

	var companies []types.Company
	for rows.Next() {
		var c types.Company
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Plan,
			&c.Status,
			&c.Timezone,
			&c.StripeCustomerID,
			&c.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan company", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating companies", err)
	}

	return companies, nil
}

// Get returns one company by ID.
func (r *CompanyRepository) Get(ctx context.Context, id string) (*types.Company, error) {
	var c types.Company
	err := r.db.QueryRow(ctx,
		`SELECT id, name, plan, status, timezone, COALESCE(stripe_customer_id, ''), created_at
		 FROM companies
		 WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Plan, &c.Status, &c.Timezone, &c.StripeCustomerID, &c.CreatedAt)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundCompany, "company not found", err)
	}
	return &c, nil
}
