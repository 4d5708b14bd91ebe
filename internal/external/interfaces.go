package external

import "context"

// EmailMessage is the provider-independent shape of one outbound email.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// EmailSender sends a single email and returns the provider message ID.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// SMSSender sends a single SMS and returns the provider message SID.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// InvoiceGateway creates and finalizes invoices at the payment provider.
type InvoiceGateway interface {
	// CreateInvoice creates a one-item invoice for the customer, finalizes
	// it so the customer can pay, and returns the provider invoice ID.
	CreateInvoice(ctx context.Context, customerID string, amountCents int64, currency, description string) (string, error)
}

// WebhookCaller delivers a JSON payload to a tenant-configured URL. Workflow
// webhook nodes use this instead of raw http so deliveries inherit the
// platform's resilience behavior.
type WebhookCaller interface {
	Call(ctx context.Context, url string, payload []byte) error
}
