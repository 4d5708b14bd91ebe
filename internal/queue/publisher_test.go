package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"leadloop/internal/types"
)

type mockSQS struct {
	inputs  []*sqs.SendMessageInput
	sendErr error
}

func (m *mockSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisher_PublishDigest(t *testing.T) {
	sqsMock := &mockSQS{}
	pub := NewPublisher(sqsMock, "https://sqs.test/digests", nil)

	msg := DigestMessage{
		CompanyID: "co_1",
		Variant:   types.DigestMorning,
		Date:      "2026-08-30",
	}
	if err := pub.PublishDigest(context.Background(), msg, 0); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	if len(sqsMock.inputs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sqsMock.inputs))
	}
	input := sqsMock.inputs[0]
	if *input.QueueUrl != "https://sqs.test/digests" {
		t.Errorf("queue URL = %q", *input.QueueUrl)
	}

	var decoded DigestMessage
	if err := json.Unmarshal([]byte(*input.MessageBody), &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.CompanyID != "co_1" || decoded.Variant != types.DigestMorning {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPublisher_PublishDigest_ClampsDelay(t *testing.T) {
	sqsMock := &mockSQS{}
	pub := NewPublisher(sqsMock, "https://sqs.test/digests", nil)

	err := pub.PublishDigest(context.Background(), DigestMessage{CompanyID: "co_1"}, time.Hour)
	if err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}
	if got := sqsMock.inputs[0].DelaySeconds; got != 900 {
		t.Errorf("DelaySeconds = %d, want 900 (SQS maximum)", got)
	}
}

func TestPublisher_PublishDigest_SendError(t *testing.T) {
	sqsMock := &mockSQS{sendErr: errors.New("queue unreachable")}
	pub := NewPublisher(sqsMock, "https://sqs.test/digests", nil)

	err := pub.PublishDigest(context.Background(), DigestMessage{CompanyID: "co_1"}, 0)
	if err == nil {
		t.Fatal("expected error when SQS send fails")
	}
}

func TestPublisher_PublishPost(t *testing.T) {
	sqsMock := &mockSQS{}
	pub := NewPublisher(sqsMock, "https://sqs.test/social-posts", nil)

	post := types.ScheduledPost{
		ID:        "post_1",
		CompanyID: "co_1",
		Platform:  "linkedin",
		Content:   "We are hiring!",
	}
	if err := pub.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("PublishPost: %v", err)
	}

	var decoded PostMessage
	if err := json.Unmarshal([]byte(*sqsMock.inputs[0].MessageBody), &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.PostID != "post_1" || decoded.Platform != "linkedin" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPublisher_PublishPost_SendError(t *testing.T) {
	sqsMock := &mockSQS{sendErr: errors.New("queue unreachable")}
	pub := NewPublisher(sqsMock, "https://sqs.test/social-posts", nil)

	if err := pub.PublishPost(context.Background(), types.ScheduledPost{ID: "post_1"}); err == nil {
		t.Fatal("expected error when SQS send fails")
	}
}

func TestPublisher_PublishDigest_PropagatesTraceID(t *testing.T) {
	sqsMock := &mockSQS{}
	pub := NewPublisher(sqsMock, "https://sqs.test/digests", nil)

	ctx := types.WithRequestID(context.Background(), "req-42")
	if err := pub.PublishDigest(ctx, DigestMessage{CompanyID: "co_1"}, 0); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	var decoded DigestMessage
	if err := json.Unmarshal([]byte(*sqsMock.inputs[0].MessageBody), &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.TraceID != "req-42" {
		t.Errorf("TraceID = %q, want req-42", decoded.TraceID)
	}
}
