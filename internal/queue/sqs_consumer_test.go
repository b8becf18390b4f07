package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"parkinghub/internal/config"
	"parkinghub/internal/domain/parking"
	"parkinghub/internal/service"
)

type fakeSQS struct {
	mu         sync.Mutex
	batches    [][]types.Message
	receiveErr error
	receives   int
	deleted    []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receives++
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if len(f.batches) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	reports []service.DeviceReport
	err     error
}

func (f *fakeRecorder) RecordDeviceEvent(_ context.Context, r service.DeviceReport, source string) (*parking.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if source != "sqs" {
		return nil, fmt.Errorf("unexpected source %q", source)
	}
	if f.err != nil {
		return nil, f.err
	}
	if r.RFIDID == "" {
		return nil, fmt.Errorf("%w: rfid_id is required", service.ErrInvalidInput)
	}
	f.reports = append(f.reports, r)
	return &parking.Event{RFIDID: r.RFIDID}, nil
}

func message(id, body string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String(body),
	}
}

func testConfig() config.SQSConfig {
	return config.SQSConfig{QueueURL: "https://sqs.local/queue", MaxMessages: 10, WaitTimeSeconds: 1, VisibilityTimeout: 30}
}

func TestPollDeletesHandledMessages(t *testing.T) {
	client := &fakeSQS{batches: [][]types.Message{{
		message("1", `{"rfid_id":"A","event_type":"IN","parking_slot":"A1"}`),
		message("2", `not json`),
		message("3", `{"event_type":"OUT"}`),
		message("4", ""),
	}}}
	recorder := &fakeRecorder{}
	c := newConsumer(client, testConfig(), recorder, zerolog.Nop())

	if !c.poll(context.Background()) {
		t.Fatalf("poll should succeed")
	}
	if len(recorder.reports) != 1 || recorder.reports[0].ParkingSlot != "A1" {
		t.Fatalf("unexpected recorded reports %+v", recorder.reports)
	}
	if len(client.deleted) != 4 {
		t.Fatalf("valid and poison messages should be deleted, got %v", client.deleted)
	}
}

func TestPollKeepsMessagesOnTransientFailure(t *testing.T) {
	client := &fakeSQS{batches: [][]types.Message{{
		message("1", `{"rfid_id":"A","event_type":"IN"}`),
	}}}
	recorder := &fakeRecorder{err: fmt.Errorf("%w: db down", service.ErrPersistence)}
	c := newConsumer(client, testConfig(), recorder, zerolog.Nop())

	c.poll(context.Background())
	if len(client.deleted) != 0 {
		t.Fatalf("message should stay on the queue, deleted %v", client.deleted)
	}
}

func TestPollReportsReceiveFailure(t *testing.T) {
	client := &fakeSQS{receiveErr: errors.New("throttled")}
	c := newConsumer(client, testConfig(), &fakeRecorder{}, zerolog.Nop())
	if c.poll(context.Background()) {
		t.Fatalf("poll should report the receive failure")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	client := &fakeSQS{receiveErr: errors.New("unreachable")}
	c := newConsumer(client, testConfig(), &fakeRecorder{}, zerolog.Nop())
	c.retry = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop after cancel")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.receives < 2 {
		t.Fatalf("expected retries after failures, got %d receives", client.receives)
	}
}
