// Package workflow executes a single workflow node per invocation. The sweep
// advances each due execution state exactly one node per pass; anything
// longer-running than one node is expressed as a delay node and picked up by
// a later pass.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"leadloop/internal/external"
	"leadloop/internal/types"
)

// StepResult is the outcome of executing one node. NextNodeID is the node
// the execution should advance to; empty means the branch ends here and the
// caller records the run as completed.
type StepResult struct {
	Success    bool
	Message    string
	Err        error
	NextNodeID string
}

// ContactUpdater applies update_contact node changes to the CRM contact
// record. The contact store itself is outside the sweep's schema.
type ContactUpdater interface {
	ApplyFields(ctx context.Context, companyID, contactID string, fields map[string]string) error
}

// Executor runs one workflow node against the vendor clients. It is
// stateless; all persistence happens in the caller.
type Executor struct {
	email   external.EmailSender
	sms     external.SMSSender
	webhook external.WebhookCaller
	contact ContactUpdater
	logger  *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(
	email external.EmailSender,
	sms external.SMSSender,
	webhook external.WebhookCaller,
	contact ContactUpdater,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		email:   email,
		sms:     sms,
		webhook: webhook,
		contact: contact,
		logger:  logger,
	}
}

// emailNodeConfig is the config payload of a send_email node.
type emailNodeConfig struct {
	To      string `json:"to"`
	ToName  string `json:"to_name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// smsNodeConfig is the config payload of a send_sms node.
type smsNodeConfig struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// webhookNodeConfig is the config payload of a webhook node.
type webhookNodeConfig struct {
	URL     string          `json:"url"`
	Payload json.RawMessage `json:"payload"`
}

// conditionNodeConfig is the config payload of a condition node. The
// condition inspects a field of the execution context; evaluation data is
// carried in the node config itself since the sweep does not load contacts.
type conditionNodeConfig struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Actual   string `json:"actual"`
}

// updateContactNodeConfig is the config payload of an update_contact node.
type updateContactNodeConfig struct {
	Fields map[string]string `json:"fields"`
}

// ExecuteNode runs exactly one node for the given execution state. Delay
// nodes succeed without side effects; their wait is applied by the caller
// when computing the next execution time.
//
// Every successful node follows its configured NextID, except a condition
// node that did not match: that ends the branch.
func (e *Executor) ExecuteNode(ctx context.Context, node *types.WorkflowNode, state *types.WorkflowExecutionState) StepResult {
	res := e.executeNode(ctx, node, state)
	if res.Success && node.Type != types.NodeCondition {
		res.NextNodeID = node.NextID
	}
	return res
}

func (e *Executor) executeNode(ctx context.Context, node *types.WorkflowNode, state *types.WorkflowExecutionState) StepResult {
	switch node.Type {
	case types.NodeDelay:
		// The wait itself is scheduling, not execution.
		return StepResult{Success: true, Message: "delay elapsed"}

	case types.NodeSendEmail:
		return e.executeEmail(ctx, node)

	case types.NodeSendSMS:
		return e.executeSMS(ctx, node)

	case types.NodeWebhook:
		return e.executeWebhook(ctx, node, state)

	case types.NodeCondition:
		return e.executeCondition(node)

	case types.NodeUpdateContact:
		return e.executeUpdateContact(ctx, node, state)

	default:
		return StepResult{
			Success: false,
			Err:     fmt.Errorf("unknown node type %q", node.Type),
		}
	}
}

func (e *Executor) executeEmail(ctx context.Context, node *types.WorkflowNode) StepResult {
	var cfg emailNodeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return StepResult{Success: false, Err: fmt.Errorf("invalid send_email config: %w", err)}
	}
	if cfg.To == "" {
		return StepResult{Success: false, Err: fmt.Errorf("send_email node %s has no recipient", node.ID)}
	}

	msgID, err := e.email.Send(ctx, external.EmailMessage{
		To:      cfg.To,
		ToName:  cfg.ToName,
		Subject: cfg.Subject,
		Body:    cfg.Body,
	})
	if err != nil {
		return StepResult{Success: false, Err: fmt.Errorf("send email: %w", err)}
	}
	return StepResult{Success: true, Message: "email sent: " + msgID}
}

func (e *Executor) executeSMS(ctx context.Context, node *types.WorkflowNode) StepResult {
	var cfg smsNodeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return StepResult{Success: false, Err: fmt.Errorf("invalid send_sms config: %w", err)}
	}
	if cfg.To == "" {
		return StepResult{Success: false, Err: fmt.Errorf("send_sms node %s has no recipient", node.ID)}
	}

	sid, err := e.sms.SendSMS(ctx, cfg.To, cfg.Body)
	if err != nil {
		return StepResult{Success: false, Err: fmt.Errorf("send sms: %w", err)}
	}
	return StepResult{Success: true, Message: "sms sent: " + sid}
}

func (e *Executor) executeWebhook(ctx context.Context, node *types.WorkflowNode, state *types.WorkflowExecutionState) StepResult {
	var cfg webhookNodeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return StepResult{Success: false, Err: fmt.Errorf("invalid webhook config: %w", err)}
	}
	if cfg.URL == "" {
		return StepResult{Success: false, Err: fmt.Errorf("webhook node %s has no url", node.ID)}
	}

	payload := cfg.Payload
	if payload == nil {
		body, err := json.Marshal(map[string]string{
			"workflow_id":  state.WorkflowID,
			"execution_id": state.ID,
			"contact_id":   state.ContactID,
			"node_id":      node.ID,
		})
		if err != nil {
			return StepResult{Success: false, Err: fmt.Errorf("marshal webhook payload: %w", err)}
		}
		payload = body
	}

	if err := e.webhook.Call(ctx, cfg.URL, payload); err != nil {
		return StepResult{Success: false, Err: fmt.Errorf("deliver webhook: %w", err)}
	}
	return StepResult{Success: true, Message: "webhook delivered"}
}

// executeCondition evaluates the node's comparison. A false condition is not
// a failure; the branch simply ends here with no next node to follow, which
// the caller records as completion.
func (e *Executor) executeCondition(node *types.WorkflowNode) StepResult {
	var cfg conditionNodeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return StepResult{Success: false, Err: fmt.Errorf("invalid condition config: %w", err)}
	}

	matched := false
	switch cfg.Operator {
	case "equals", "":
		matched = cfg.Actual == cfg.Value
	case "not_equals":
		matched = cfg.Actual != cfg.Value
	case "exists":
		matched = cfg.Actual != ""
	default:
		return StepResult{Success: false, Err: fmt.Errorf("unknown condition operator %q", cfg.Operator)}
	}

	if matched {
		return StepResult{Success: true, Message: "condition matched", NextNodeID: node.NextID}
	}
	return StepResult{Success: true, Message: "condition not matched"}
}

func (e *Executor) executeUpdateContact(ctx context.Context, node *types.WorkflowNode, state *types.WorkflowExecutionState) StepResult {
	var cfg updateContactNodeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return StepResult{Success: false, Err: fmt.Errorf("invalid update_contact config: %w", err)}
	}
	if state.ContactID == "" {
		return StepResult{Success: false, Err: fmt.Errorf("update_contact node %s: execution has no contact", node.ID)}
	}

	if err := e.contact.ApplyFields(ctx, state.CompanyID, state.ContactID, cfg.Fields); err != nil {
		return StepResult{Success: false, Err: fmt.Errorf("update contact: %w", err)}
	}
	return StepResult{Success: true, Message: "contact updated"}
}
