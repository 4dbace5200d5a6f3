package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"presence/internal/queue"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	err   error
	done  chan struct{}
}

func newRecorder(err error) *recorder {
	return &recorder{err: err, done: make(chan struct{}, 8)}
}

func (r *recorder) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	r.calls = append(r.calls, id)
	r.mu.Unlock()
	r.done <- struct{}{}
	return r.err
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cleanup task")
	}
}

func TestDispatcherAndWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(8)
	faces := newRecorder(nil)
	photos := newRecorder(nil)
	go NewWorker(faces, photos).Run(ctx, q)

	d := NewDispatcher(q)
	d.DeleteFace(ctx, "p-1")
	d.DeletePhoto(ctx, "user/1-a.jpg")

	waitFor(t, faces.done)
	waitFor(t, photos.done)

	if got := faces.got(); len(got) != 1 || got[0] != "p-1" {
		t.Errorf("expected face delete for p-1, got %v", got)
	}
	if got := photos.got(); len(got) != 1 || got[0] != "user/1-a.jpg" {
		t.Errorf("expected photo delete for user/1-a.jpg, got %v", got)
	}
}

func TestWorker_FailuresDoNotStopProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(8)
	faces := newRecorder(errors.New("service down"))
	photos := newRecorder(nil)
	go NewWorker(faces, photos).Run(ctx, q)

	d := NewDispatcher(q)
	d.DeleteFace(ctx, "p-1")
	d.DeleteFace(ctx, "p-2")

	waitFor(t, faces.done)
	waitFor(t, faces.done)
	if got := faces.got(); len(got) != 2 {
		t.Errorf("expected both tasks attempted, got %v", got)
	}
}

func TestWorker_UnknownType(t *testing.T) {
	w := NewWorker(newRecorder(nil), newRecorder(nil))
	if err := w.Handle(context.Background(), queue.Message{Type: "bogus"}); err == nil {
		t.Error("expected error for unknown task type")
	}
}

type failingQueue struct{}

func (failingQueue) Publish(ctx context.Context, msg queue.Message) error {
	return errors.New("redis unavailable")
}

func (failingQueue) Consume(ctx context.Context) (<-chan queue.Message, error) {
	return nil, errors.New("redis unavailable")
}

func TestDispatcher_PublishFailureIsSwallowed(t *testing.T) {
	d := NewDispatcher(failingQueue{})
	d.DeleteFace(context.Background(), "p-1")
	d.DeletePhoto(context.Background(), "user/x.jpg")
}

func TestDispatcher_CancelledRequestStillQueues(t *testing.T) {
	q := queue.NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewDispatcher(q).DeletePhoto(ctx, "user/x.jpg")

	msgs, _ := q.Consume(context.Background())
	select {
	case msg := <-msgs:
		if msg.Type != TypePhotoDelete {
			t.Errorf("unexpected message %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected task to be queued despite cancelled request context")
	}
}

func TestDispatcher_FullQueueDropsTask(t *testing.T) {
	q := queue.NewInMemory(1)
	d := NewDispatcher(q)
	d.DeletePhoto(context.Background(), "user/first.jpg")

	started := time.Now()
	d.DeletePhoto(context.Background(), "user/second.jpg")
	if waited := time.Since(started); waited > 100*time.Millisecond {
		t.Errorf("delete request waited %s on a full queue", waited)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, _ := q.Consume(ctx)
	if msg := <-msgs; string(msg.Body) != "user/first.jpg" {
		t.Errorf("expected the first task to stay queued, got %s", msg.Body)
	}
	select {
	case msg := <-msgs:
		t.Errorf("dropped task was delivered: %s", msg.Body)
	case <-time.After(50 * time.Millisecond):
	}
}
