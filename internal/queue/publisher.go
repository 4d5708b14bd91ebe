// Package queue publishes digest and social-post dispatch messages to SQS.
// Delivery workers consuming the queues live outside this service; the sweep
// only enqueues.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"leadloop/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// DigestMessage is the payload enqueued for one company's digest pass.
type DigestMessage struct {
	CompanyID    string              `json:"company_id"`
	Variant      types.DigestVariant `json:"variant"`
	Date         string              `json:"date"`
	Appointments []types.Appointment `json:"appointments,omitempty"`
	Tasks        []types.Task        `json:"tasks,omitempty"`
	DoneCount    int                 `json:"done_count,omitempty"`
	OpenCount    int                 `json:"open_count,omitempty"`
	TraceID      string              `json:"trace_id,omitempty"`
}

// Publisher wraps an SQS client to enqueue digest messages for downstream
// delivery workers.
type Publisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewPublisher creates a Publisher targeting the given SQS queue.
func NewPublisher(client SQSSender, queueURL string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// PublishDigest serializes the digest message and sends it to the queue with
// the given delay. SQS caps DelaySeconds at 900; longer delays are clamped.
func (p *Publisher) PublishDigest(ctx context.Context, msg DigestMessage, delay time.Duration) error {
	if msg.TraceID == "" {
		msg.TraceID = types.GetRequestID(ctx)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("digest publisher: failed to marshal message: %w", err)
	}

	delaySec := int32(delay.Seconds())
	if delaySec > 900 {
		delaySec = 900
	}
	if delaySec < 0 {
		delaySec = 0
	}

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(p.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("digest publisher: failed to send message to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "digest message published",
		"company_id", msg.CompanyID,
		"variant", string(msg.Variant),
		"date", msg.Date,
		"delay_seconds", delaySec,
	)

	return nil
}

// PostMessage is the payload enqueued for one scheduled social post. The
// platform integration workers pick it up and publish to the target network.
type PostMessage struct {
	PostID    string `json:"post_id"`
	CompanyID string `json:"company_id"`
	Platform  string `json:"platform"`
	Content   string `json:"content"`
	TraceID   string `json:"trace_id,omitempty"`
}

// PublishPost enqueues a due social post for dispatch.
func (p *Publisher) PublishPost(ctx context.Context, post types.ScheduledPost) error {
	msg := PostMessage{
		PostID:    post.ID,
		CompanyID: post.CompanyID,
		Platform:  post.Platform,
		Content:   post.Content,
		TraceID:   types.GetRequestID(ctx),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("post publisher: failed to marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("post publisher: failed to send message to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "social post message published",
		"post_id", post.ID,
		"company_id", post.CompanyID,
		"platform", post.Platform,
	)

	return nil
}
