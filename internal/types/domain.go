// Package types defines the shared domain model for the LeadLoop automation
// platform: tenant records, workflow execution state, retention-managed
// collections, and the error/context plumbing used by every other package.
package types

import (
	"encoding/json"
	"time"
)

// Company is a tenant of the platform. Every sub-resource (workflows,
// notifications, posts, chat sessions, appointments, invoices) is keyed by
// CompanyID. Companies are created at signup and are never deleted by the
// sweep.
type Company struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Plan             string        `json:"plan"`
	Status           CompanyStatus `json:"status"`
	Timezone         string        `json:"timezone"`
	StripeCustomerID string        `json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Workflow is a tenant-defined automation graph. Nodes are stored inline as
// an ordered set keyed by node ID; the entry node is EntryNodeID.
type Workflow struct {
	ID             string         `json:"id"`
	CompanyID      string         `json:"company_id"`
	Name           string         `json:"name"`
	Active         bool           `json:"active"`
	EntryNodeID    string         `json:"entry_node_id"`
	Nodes          []WorkflowNode `json:"nodes"`
	RunCount       int            `json:"run_count"`
	CompletedCount int            `json:"completed_count"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Node returns the node with the given ID, or nil if the workflow has no
// such node.
func (w *Workflow) Node(id string) *WorkflowNode {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// WorkflowNode is a single step in a workflow graph. Config carries the
// node-type-specific payload (email template, webhook URL, delay fields).
type WorkflowNode struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Type   NodeType        `json:"type"`
	NextID string          `json:"next_id,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// DelayConfig is the config payload of a delay node. The wait duration is
// minutes + hours*60 + days*1440, in minutes.
type DelayConfig struct {
	Minutes int `json:"minutes"`
	Hours   int `json:"hours"`
	Days    int `json:"days"`
}

// Duration returns the configured wait as a time.Duration.
func (d DelayConfig) Duration() time.Duration {
	return time.Duration(d.Minutes+d.Hours*60+d.Days*1440) * time.Minute
}

// WorkflowExecutionState is one in-flight run of one workflow for one
// company. The sweep advances it exactly one node per pass.
//
// Invariants:
//   - Status == ExecutionWaiting implies NextExecutionAt is set from the
//     delay node's configured duration.
//   - Status == ExecutionCompleted is terminal and stamps CompletedAt.
//   - Terminal states are never re-selected by the due query.
type WorkflowExecutionState struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"company_id"`
	WorkflowID      string          `json:"workflow_id"`
	ContactID       string          `json:"contact_id,omitempty"`
	CurrentNodeID   string          `json:"current_node_id"`
	Status          ExecutionStatus `json:"status"`
	NextExecutionAt time.Time       `json:"next_execution_at"`
	ExecutedNodeIDs []string        `json:"executed_node_ids"`
	LastError       string          `json:"last_error,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// WorkflowRunLog is an append-only record of one node execution attempt.
// Run logs are never mutated; the data-retention cleaner deletes them after
// a fixed age (archiving them to object storage first).
type WorkflowRunLog struct {
	ID          string       `json:"id"`
	CompanyID   string       `json:"company_id"`
	WorkflowID  string       `json:"workflow_id"`
	ExecutionID string       `json:"execution_id"`
	NodeID      string       `json:"node_id"`
	NodeName    string       `json:"node_name"`
	NodeType    NodeType     `json:"node_type"`
	Status      RunLogStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	ExecutedAt  time.Time    `json:"executed_at"`
}

// CronState is the daily-once guard record: one row per daily-gated task,
// overwritten (not appended) on each real run. LastRunDate is a calendar
// date in "2006-01-02" form, compared against "today" in the platform
// timezone. The guard is best-effort: it is not transactional against
// overlapping sweeps.
type CronState struct {
	TaskName    string          `json:"task_name"`
	LastRunDate string          `json:"last_run_date"`
	LastRunAt   time.Time       `json:"last_run_at"`
	Summary     json.RawMessage `json:"summary,omitempty"`
}

// Notification is a per-company operational notification shown in the
// dashboard feed. Subject to 7-day retention.
type Notification struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ScheduledPost is a social post queued for publication. Terminal posts
// (posted/failed) older than 30 days are retention-deleted.
type ScheduledPost struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	Platform    string     `json:"platform"`
	Content     string     `json:"content"`
	Status      PostStatus `json:"status"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FailureNote string     `json:"failure_note,omitempty"`
}

// ChatSession is an AI-assistant conversation owned by one dashboard user.
// The cleaner keeps the 20 most recently updated sessions per user.
type ChatSession struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one message inside a chat session. Messages are deleted
// with their parent session.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Appointment is a booked meeting between a company and a contact.
// Appointments are user content and are never retention-deleted; the sweep
// only reads them for reminders and digests.
type Appointment struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"company_id"`
	ContactName    string          `json:"contact_name"`
	ContactPhone   string          `json:"contact_phone,omitempty"`
	ContactEmail   string          `json:"contact_email,omitempty"`
	StartsAt       time.Time       `json:"starts_at"`
	Channel        ReminderChannel `json:"channel"`
	ReminderSentAt *time.Time      `json:"reminder_sent_at,omitempty"`
}

// RecurringInvoiceTemplate drives monthly invoice generation. NextIssueDate
// is advanced one month after each issue.
type RecurringInvoiceTemplate struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	CustomerEmail string    `json:"customer_email"`
	Description   string    `json:"description"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	Active        bool      `json:"active"`
	NextIssueDate time.Time `json:"next_issue_date"`
}

// Invoice is a generated invoice tracked locally alongside its Stripe
// counterpart. Open invoices past due accumulate payment reminders, capped
// at MaxPaymentReminders.
type Invoice struct {
	ID              string        `json:"id"`
	CompanyID       string        `json:"company_id"`
	TemplateID      string        `json:"template_id,omitempty"`
	StripeInvoiceID string        `json:"stripe_invoice_id,omitempty"`
	CustomerEmail   string        `json:"customer_email"`
	AmountCents     int64         `json:"amount_cents"`
	Currency        string        `json:"currency"`
	Status          InvoiceStatus `json:"status"`
	DueAt           time.Time     `json:"due_at"`
	IssuedAt        time.Time     `json:"issued_at"`
	ReminderCount   int           `json:"reminder_count"`
	LastReminderAt  *time.Time    `json:"last_reminder_at,omitempty"`
}

// MaxPaymentReminders caps how many reminder emails are sent for a single
// open invoice.
const MaxPaymentReminders = 3

// EmailAutomation is one scheduled automation email (drip step, follow-up)
// waiting to be sent. The automation runner picks up pending rows whose
// send_at has passed.
type EmailAutomation struct {
	ID             string           `json:"id"`
	CompanyID      string           `json:"company_id"`
	RecipientEmail string           `json:"recipient_email"`
	Subject        string           `json:"subject"`
	Body           string           `json:"body"`
	SendAt         time.Time        `json:"send_at"`
	Status         AutomationStatus `json:"status"`
	SentAt         *time.Time       `json:"sent_at,omitempty"`
	FailureNote    string           `json:"failure_note,omitempty"`
}

// CampaignJob is a batch send of one campaign to its recipient list. The
// campaign runner claims scheduled jobs whose scheduled_at has passed and
// marks them running, then completed or failed.
type CampaignJob struct {
	ID             string            `json:"id"`
	CompanyID      string            `json:"company_id"`
	CampaignID     string            `json:"campaign_id"`
	Name           string            `json:"name"`
	Subject        string            `json:"subject"`
	Body           string            `json:"body"`
	Recipients     []string          `json:"recipients"`
	Status         CampaignJobStatus `json:"status"`
	ScheduledAt    time.Time         `json:"scheduled_at"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	SentCount      int               `json:"sent_count"`
	FailedCount    int               `json:"failed_count"`
}

// Task is a CRM to-do assigned to a dashboard user. The daily digest reminds
// assignees of tasks due on the current day; tasks themselves are user
// content and are never retention-deleted.
type Task struct {
	ID            string     `json:"id"`
	CompanyID     string     `json:"company_id"`
	AssigneeEmail string     `json:"assignee_email"`
	Title         string     `json:"title"`
	DueAt         time.Time  `json:"due_at"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
