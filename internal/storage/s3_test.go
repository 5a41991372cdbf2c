package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/friendgraph/backend/internal/config"
	"github.com/friendgraph/backend/internal/relationships"
)

type recordingUploader struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (u *recordingUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.inputs = append(u.inputs, input)
	u.bodies = append(u.bodies, body)
	if u.err != nil {
		return nil, u.err
	}
	return &manager.UploadOutput{}, nil
}

func TestS3ArchivePublish(t *testing.T) {
	uploader := &recordingUploader{}
	archive := newS3Archive(uploader, "events", "/relationships/")

	event := relationships.Event{
		Type:       relationships.StatusBecameFriends,
		Actor:      "alice",
		Target:     "bob",
		EdgeID:     "edge-1",
		OccurredAt: time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC),
	}

	if err := archive.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(uploader.inputs) != 1 {
		t.Fatalf("expected one upload got %d", len(uploader.inputs))
	}
	input := uploader.inputs[0]
	if aws.ToString(input.Bucket) != "events" {
		t.Fatalf("unexpected bucket %q", aws.ToString(input.Bucket))
	}
	wantKey := "relationships/2024/03/05/20240305T103000.000000000Z-became_friends-edge-1.json"
	if aws.ToString(input.Key) != wantKey {
		t.Fatalf("expected key %q got %q", wantKey, aws.ToString(input.Key))
	}

	var stored relationships.Event
	if err := json.Unmarshal(uploader.bodies[0], &stored); err != nil {
		t.Fatalf("decode stored event: %v", err)
	}
	if stored.Type != event.Type || stored.Actor != "alice" || stored.Target != "bob" {
		t.Fatalf("unexpected stored event: %+v", stored)
	}
}

func TestS3ArchiveKeyWithoutEdge(t *testing.T) {
	archive := newS3Archive(&recordingUploader{}, "events", "")
	key := archive.Key(relationships.Event{
		Type:       relationships.StatusRemoved,
		Actor:      "alice",
		Target:     "bob",
		OccurredAt: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
	})
	if key != "2024/03/05/20240305T000000.000000000Z-removed-alice_bob.json" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestS3ArchivePublishError(t *testing.T) {
	archive := newS3Archive(&recordingUploader{err: errors.New("denied")}, "events", "")
	if err := archive.Publish(context.Background(), relationships.Event{Type: relationships.StatusSent}); err == nil {
		t.Fatal("expected upload error to be returned")
	}
}

func TestNewS3ArchiveRequiresBucket(t *testing.T) {
	if _, err := NewS3Archive(context.Background(), config.ArchiveConfig{Region: "us-east-1"}); err == nil {
		t.Fatal("expected missing bucket to fail")
	}
}
