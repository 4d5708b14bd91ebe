package types

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionActive    ExecutionStatus = "active"
	ExecutionWaiting   ExecutionStatus = "waiting"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionPaused    ExecutionStatus = "paused"
)

// IsTerminal reports whether the status is final. Terminal executions are
// never re-selected by the due-state query.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// NodeType identifies the behavior of a workflow node.
type NodeType string

const (
	NodeSendEmail     NodeType = "send_email"
	NodeSendSMS       NodeType = "send_sms"
	NodeWebhook       NodeType = "webhook"
	NodeDelay         NodeType = "delay"
	NodeCondition     NodeType = "condition"
	NodeUpdateContact NodeType = "update_contact"
)

// RunLogStatus is the outcome recorded for a single node execution attempt.
type RunLogStatus string

const (
	RunLogSuccess RunLogStatus = "success"
	RunLogFailed  RunLogStatus = "failed"
)

// PostStatus is the lifecycle state of a scheduled social post.
type PostStatus string

const (
	PostScheduled PostStatus = "scheduled"
	PostPosted    PostStatus = "posted"
	PostFailed    PostStatus = "failed"
)

// IsTerminal reports whether the post has finished its lifecycle. Only
// terminal posts are eligible for retention deletion.
func (s PostStatus) IsTerminal() bool {
	return s == PostPosted || s == PostFailed
}

// InvoiceStatus mirrors the Stripe invoice lifecycle subset the sweep
// cares about.
type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceOpen  InvoiceStatus = "open"
	InvoicePaid  InvoiceStatus = "paid"
	InvoiceVoid  InvoiceStatus = "void"
)

// ReminderChannel selects how an appointment reminder is delivered.
type ReminderChannel string

const (
	ReminderSMS   ReminderChannel = "sms"
	ReminderEmail ReminderChannel = "email"
	ReminderBoth  ReminderChannel = "both"
)

// DigestVariant identifies which daily-digest pass is being generated.
type DigestVariant string

const (
	DigestMorning    DigestVariant = "morning"
	DigestHourBefore DigestVariant = "hour_before"
	DigestEndOfDay   DigestVariant = "end_of_day"
)

// AutomationStatus is the lifecycle state of a scheduled automation email.
type AutomationStatus string

const (
	AutomationPending AutomationStatus = "pending"
	AutomationSent    AutomationStatus = "sent"
	AutomationFailed  AutomationStatus = "failed"
)

// CampaignJobStatus is the lifecycle state of a campaign send job.
type CampaignJobStatus string

const (
	CampaignJobScheduled CampaignJobStatus = "scheduled"
	CampaignJobRunning   CampaignJobStatus = "running"
	CampaignJobCompleted CampaignJobStatus = "completed"
	CampaignJobFailed    CampaignJobStatus = "failed"
)

// CompanyStatus is the subscription state of a tenant.
type CompanyStatus string

const (
	CompanyActive    CompanyStatus = "active"
	CompanyTrialing  CompanyStatus = "trialing"
	CompanySuspended CompanyStatus = "suspended"
)
