package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leadloop/internal/external"
	"leadloop/internal/types"
)

// billingBatchSize caps templates and overdue invoices processed per pass.
const billingBatchSize = 100

// paymentTermDays is how long customers get to pay a generated invoice.
// Matches the days_until_due sent to the payment provider.
const paymentTermDays = 14

// BillingStore is the persistence contract for the invoice generator and the
// payment reminder runner.
type BillingStore interface {
	ListDueTemplates(ctx context.Context, asOf time.Time, limit int) ([]types.RecurringInvoiceTemplate, error)
	InsertInvoice(ctx context.Context, inv *types.Invoice) error
	AdvanceTemplate(ctx context.Context, id string, next time.Time) error
	ListOverdueOpen(ctx context.Context, asOf time.Time, limit int) ([]types.Invoice, error)
	RecordReminder(ctx context.Context, invoiceID string, now time.Time) error
}

// CompanyGetter resolves a tenant's billing identity.
type CompanyGetter interface {
	Get(ctx context.Context, id string) (*types.Company, error)
}

// InvoiceGenerator issues invoices from due recurring templates: create and
// finalize at the payment provider, record locally, then advance the
// template one month. Runs behind the early-morning window and daily guard.
type InvoiceGenerator struct {
	store     BillingStore
	companies CompanyGetter
	gateway   external.InvoiceGateway
	logger    *slog.Logger
}

// NewInvoiceGenerator creates an InvoiceGenerator.
func NewInvoiceGenerator(store BillingStore, companies CompanyGetter, gateway external.InvoiceGateway, logger *slog.Logger) *InvoiceGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceGenerator{
		store:     store,
		companies: companies,
		gateway:   gateway,
		logger:    logger,
	}
}

// Run implements Runner.
func (g *InvoiceGenerator) Run(ctx context.Context, now time.Time) TaskResult {
	templates, err := g.store.ListDueTemplates(ctx, now, billingBatchSize)
	if err != nil {
		return failure(fmt.Errorf("listing due invoice templates: %w", err))
	}

	issued, genSkipped, genFailed := 0, 0, 0
	customers := map[string]string{}

	for _, tmpl := range templates {
		customerID, ok := customers[tmpl.CompanyID]
		if !ok {
			company, err := g.companies.Get(ctx, tmpl.CompanyID)
			if err != nil {
				genFailed++
				g.logger.ErrorContext(ctx, "failed to load company for invoicing",
					"company_id", tmpl.CompanyID, "error", err.Error())
				continue
			}
			customerID = company.StripeCustomerID
			customers[tmpl.CompanyID] = customerID
		}
		if customerID == "" {
			// No billing identity yet; the template stays due until the
			// tenant connects their payment account.
			genSkipped++
			g.logger.WarnContext(ctx, "company has no billing customer, skipping template",
				"company_id", tmpl.CompanyID, "template_id", tmpl.ID)
			continue
		}

		stripeID, err := g.gateway.CreateInvoice(ctx, customerID, tmpl.AmountCents, tmpl.Currency, tmpl.Description)
		if err != nil {
			genFailed++
			g.logger.ErrorContext(ctx, "invoice creation failed",
				"template_id", tmpl.ID, "error", err.Error())
			continue
		}

		inv := &types.Invoice{
			ID:              uuid.New().String(),
			CompanyID:       tmpl.CompanyID,
			TemplateID:      tmpl.ID,
			StripeInvoiceID: stripeID,
			CustomerEmail:   tmpl.CustomerEmail,
			AmountCents:     tmpl.AmountCents,
			Currency:        tmpl.Currency,
			Status:          types.InvoiceOpen,
			DueAt:           now.AddDate(0, 0, paymentTermDays),
			IssuedAt:        now,
		}
		if err := g.store.InsertInvoice(ctx, inv); err != nil {
			// The provider invoice exists; reconciliation picks up the
			// orphan. Do not advance the template without a local record.
			genFailed++
			g.logger.ErrorContext(ctx, "failed to record invoice",
				"template_id", tmpl.ID, "stripe_invoice_id", stripeID, "error", err.Error())
			continue
		}

		if err := g.store.AdvanceTemplate(ctx, tmpl.ID, tmpl.NextIssueDate.AddDate(0, 1, 0)); err != nil {
			g.logger.ErrorContext(ctx, "failed to advance invoice template",
				"template_id", tmpl.ID, "error", err.Error())
		}
		issued++
	}

	return TaskResult{
		Success: true,
		Details: map[string]any{
			"due":     len(templates),
			"issued":  issued,
			"skipped": genSkipped,
			"failed":  genFailed,
		},
		Items: issued,
	}
}

// PaymentReminderRunner emails customers about open invoices past due, up to
// the per-invoice reminder cap. Runs behind the mid-morning window and daily
// guard, so each eligible invoice gets at most one reminder per day.
type PaymentReminderRunner struct {
	store  BillingStore
	email  external.EmailSender
	logger *slog.Logger
}

// NewPaymentReminderRunner creates a PaymentReminderRunner.
func NewPaymentReminderRunner(store BillingStore, email external.EmailSender, logger *slog.Logger) *PaymentReminderRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentReminderRunner{store: store, email: email, logger: logger}
}

// Run implements Runner.
func (r *PaymentReminderRunner) Run(ctx context.Context, now time.Time) TaskResult {
	overdue, err := r.store.ListOverdueOpen(ctx, now, billingBatchSize)
	if err != nil {
		return failure(fmt.Errorf("listing overdue invoices: %w", err))
	}

	sent, sendFailed := 0, 0
	for _, inv := range overdue {
		_, err := r.email.Send(ctx, external.EmailMessage{
			To:      inv.CustomerEmail,
			Subject: fmt.Sprintf("Payment reminder: invoice due %s", inv.DueAt.Format("Jan 2, 2006")),
			Body:    r.reminderBody(inv),
		})
		if err != nil {
			sendFailed++
			r.logger.ErrorContext(ctx, "payment reminder send failed",
				"invoice_id", inv.ID, "error", err.Error())
			continue
		}
		if err := r.store.RecordReminder(ctx, inv.ID, now); err != nil {
			r.logger.ErrorContext(ctx, "failed to record payment reminder",
				"invoice_id", inv.ID, "error", err.Error())
		}
		sent++
	}

	return TaskResult{
		Success: true,
		Details: map[string]any{"overdue": len(overdue), "sent": sent, "failed": sendFailed},
		Items:   sent,
	}
}

func (r *PaymentReminderRunner) reminderBody(inv types.Invoice) string {
	amount := float64(inv.AmountCents) / 100
	return fmt.Sprintf(
		"<p>This is a friendly reminder that your invoice for <strong>%.2f %s</strong> was due on %s.</p><p>Please arrange payment at your earliest convenience.</p>",
		amount, inv.Currency, inv.DueAt.Format("January 2, 2006"))
}
