package db

import (
	"context"
	"time"

	"leadloop/internal/types"
)

// BillingRepository provides data access for recurring invoice templates and
// locally-tracked invoices.
type BillingRepository struct {
	db DBTX
}

// NewBillingRepository creates a new BillingRepository backed by the given
// database connection (pool or transaction).
func NewBillingRepository(db DBTX) *BillingRepository {
	return &BillingRepository{db: db}
}

// ListDueTemplates returns active recurring templates whose next_issue_date
// is on or before the given date, oldest first.
func (r *BillingRepository) ListDueTemplates(ctx context.Context, asOf time.Time, limit int) ([]types.RecurringInvoiceTemplate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, company_id, customer_email, description, amount_cents,
		        currency, active, next_issue_date
		 FROM recurring_invoice_templates
		 WHERE active AND next_issue_date <= $1
		 ORDER BY next_issue_date, id
		 LIMIT $2`,
		asOf,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due invoice templates", err)
	}
	defer rows.Close()

	var templates []types.RecurringInvoiceTemplate
	for rows.Next() {
		var t types.RecurringInvoiceTemplate
		if err := rows.Scan(
			&t.ID,
			&t.CompanyID,
			&t.CustomerEmail,
			&t.Description,
			&t.AmountCents,
			&t.Currency,
			&t.Active,
			&t.NextIssueDate,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan invoice template", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating invoice templates", err)
	}

	return templates, nil
}

// InsertInvoice records a generated invoice alongside its Stripe
// counterpart.
func (r *BillingRepository) InsertInvoice(ctx context.Context, inv *types.Invoice) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO invoices
		 (id, company_id, template_id, stripe_invoice_id, customer_email,
		  amount_cents, currency, status, due_at, issued_at, reminder_count)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, 0)`,
		inv.ID,
		inv.CompanyID,
		inv.TemplateID,
		inv.StripeInvoiceID,
		inv.CustomerEmail,
		inv.AmountCents,
		inv.Currency,
		inv.Status,
		inv.DueAt,
		inv.IssuedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert invoice", err)
	}
	return nil
}

// AdvanceTemplate moves a template's next_issue_date forward after issuing.
func (r *BillingRepository) AdvanceTemplate(ctx context.Context, id string, next time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE recurring_invoice_templates
		 SET next_issue_date = $2
		 WHERE id = $1`,
		id,
		next,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to advance invoice template", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundInvoice, "invoice template not found", nil)
	}
	return nil
}

// ListOverdueOpen returns open invoices past due as of the given instant
// with fewer than the maximum reminders sent, most overdue first.
func (r *BillingRepository) ListOverdueOpen(ctx context.Context, asOf time.Time, limit int) ([]types.Invoice, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, company_id, COALESCE(template_id, ''), COALESCE(stripe_invoice_id, ''),
		        customer_email, amount_cents, currency, status, due_at, issued_at,
		        reminder_count, last_reminder_at
		 FROM invoices
		 WHERE status = 'open' AND due_at < $1 AND reminder_count < $2
		 ORDER BY due_at, id
		 LIMIT $3`,
		asOf,
		types.MaxPaymentReminders,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query overdue invoices", err)
	}
	defer rows.Close()

	var invoices []types.Invoice
	for rows.Next() {
		var inv types.Invoice
		if err := rows.Scan(
			&inv.ID,
			&inv.CompanyID,
			&inv.TemplateID,
			&inv.StripeInvoiceID,
			&inv.CustomerEmail,
			&inv.AmountCents,
			&inv.Currency,
			&inv.Status,
			&inv.DueAt,
			&inv.IssuedAt,
			&inv.ReminderCount,
			&inv.LastReminderAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan invoice", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating invoices", err)
	}

	return invoices, nil
}

// RecordReminder increments the reminder counter and stamps the send time.
func (r *BillingRepository) RecordReminder(ctx context.Context, invoiceID string, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices
		 SET reminder_count = reminder_count + 1, last_reminder_at = $2
		 WHERE id = $1`,
		invoiceID,
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record payment reminder", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundInvoice, "invoice not found", nil)
	}
	return nil
}
