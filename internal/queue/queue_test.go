package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemory_PublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	if err := q.Publish(ctx, Message{Type: "photo.delete", Body: []byte("user/a.jpg")}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Type != "photo.delete" || string(msg.Body) != "user/a.jpg" {
			t.Errorf("unexpected message %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemory_PublishDoesNotWaitWhenFull(t *testing.T) {
	q := NewInMemory(1)
	if err := q.Publish(context.Background(), Message{Type: "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	started := time.Now()
	if err := q.Publish(context.Background(), Message{Type: "y"}); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if waited := time.Since(started); waited > 100*time.Millisecond {
		t.Errorf("publish waited %s on a full buffer", waited)
	}
}

func TestInMemory_PublishRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewInMemory(1).Publish(ctx, Message{Type: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemory_ConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, _ := NewInMemory(1).Consume(ctx)
	cancel()

	select {
	case _, ok := <-msgs:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestEncodeDecode(t *testing.T) {
	in := Message{Type: "face.delete", Body: []byte("a|b")}
	s, err := encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decode(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Type != in.Type || string(out.Body) != string(in.Body) {
		t.Errorf("expected %+v, got %+v", in, out)
	}

	if _, err := decode(`{"body":"eA=="}`); err == nil {
		t.Error("expected error for message without type")
	}
	if _, err := decode("garbage"); err == nil {
		t.Error("expected error for malformed payload")
	}
}
