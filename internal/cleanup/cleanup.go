// Package cleanup runs the best-effort removals that follow an authoritative
// delete: face templates in the recognition service and stored photos.
// Tasks travel over a queue so the caller never waits on them.
package cleanup

import (
	"context"
	"fmt"
	"log"
	"time"

	"presence/internal/metrics"
	"presence/internal/queue"
)

const (
	TypeFaceDelete  = "face.delete"
	TypePhotoDelete = "photo.delete"
)

// Dispatcher publishes cleanup tasks. Publishing failures are logged only.
type Dispatcher struct {
	q       queue.Queue
	timeout time.Duration
}

func NewDispatcher(q queue.Queue) *Dispatcher {
	return &Dispatcher{q: q, timeout: 2 * time.Second}
}

// DeleteFace schedules removal of a person's face template.
func (d *Dispatcher) DeleteFace(ctx context.Context, personID string) {
	d.publish(ctx, queue.Message{Type: TypeFaceDelete, Body: []byte(personID)})
}

// DeletePhoto schedules removal of a stored photo.
func (d *Dispatcher) DeletePhoto(ctx context.Context, ref string) {
	d.publish(ctx, queue.Message{Type: TypePhotoDelete, Body: []byte(ref)})
}

func (d *Dispatcher) publish(ctx context.Context, msg queue.Message) {
	// The request may finish before the task is queued.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.q.Publish(ctx, msg); err != nil {
		metrics.CleanupTasks.WithLabelValues(msg.Type, "unqueued").Inc()
		log.Printf("cleanup: could not queue %s %s: %v", msg.Type, msg.Body, err)
	}
}

// FaceDeleter removes face templates.
type FaceDeleter interface {
	Delete(ctx context.Context, personID string) error
}

// PhotoDeleter removes stored photos.
type PhotoDeleter interface {
	Delete(ctx context.Context, ref string) error
}

// Worker executes cleanup tasks.
type Worker struct {
	faces   FaceDeleter
	photos  PhotoDeleter
	timeout time.Duration
}

func NewWorker(faces FaceDeleter, photos PhotoDeleter) *Worker {
	return &Worker{faces: faces, photos: photos, timeout: 10 * time.Second}
}

// Run consumes q until ctx is cancelled. Task failures are logged and dropped.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume cleanup queue: %w", err)
	}
	for msg := range messages {
		if err := w.Handle(ctx, msg); err != nil {
			log.Printf("cleanup: %s %s failed: %v", msg.Type, msg.Body, err)
		}
	}
	return nil
}

// Handle executes a single task.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var err error
	switch msg.Type {
	case TypeFaceDelete:
		err = w.faces.Delete(ctx, string(msg.Body))
	case TypePhotoDelete:
		err = w.photos.Delete(ctx, string(msg.Body))
	default:
		err = fmt.Errorf("unknown task type %q", msg.Type)
	}
	metrics.CleanupTasks.WithLabelValues(msg.Type, metrics.Result(err)).Inc()
	return err
}
