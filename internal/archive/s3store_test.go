package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Upload(t *testing.T) {
	client := &fakeS3{}
	store := NewS3Store(client, "leadloop-archives")

	if err := store.Upload(context.Background(), "run-logs/co_1/key", []byte("payload")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("put calls = %d", len(client.inputs))
	}

	in := client.inputs[0]
	if *in.Bucket != "leadloop-archives" || *in.Key != "run-logs/co_1/key" {
		t.Errorf("bucket/key = %s/%s", *in.Bucket, *in.Key)
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q", body)
	}
}

func TestS3Store_UploadError(t *testing.T) {
	store := NewS3Store(&fakeS3{err: errors.New("access denied")}, "leadloop-archives")

	if err := store.Upload(context.Background(), "k", []byte("x")); err == nil {
		t.Fatal("expected error")
	}
}
