// Package enrollment keeps persons in the directory consistent with their
// face templates in the recognition service.
//
// The recognition service cannot take part in a database transaction, so
// every create and update runs as a saga: local write, remote call, and on
// remote failure a compensating local rollback. A stored photo is deleted
// either by the write that replaced it or by the rollback of the write that
// stored it, never by anyone else.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"presence/internal/directory"
	"presence/internal/metrics"
	"presence/internal/model"
)

// Directory is the person storage the coordinator writes through.
type Directory interface {
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	ClassExists(ctx context.Context, id string) (bool, error)
	InsertPerson(ctx context.Context, in model.PersonInput, photo *string) (model.Person, error)
	UpdatePerson(ctx context.Context, id string, patch model.PersonPatch, photo *string) (model.Person, *string, error)
	RestorePerson(ctx context.Context, snapshot model.Person, expectedPhoto string) (bool, error)
	DeletePerson(ctx context.Context, id string) (model.Person, error)
}

// FaceIndex is the part of the recognition service enrollment needs.
type FaceIndex interface {
	Enroll(ctx context.Context, personID string, image model.Image) error
	Update(ctx context.Context, personID string, image model.Image) error
}

// Photos stores uploaded photos.
type Photos interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Cleanup schedules best-effort removals without waiting for them.
type Cleanup interface {
	DeleteFace(ctx context.Context, personID string)
	DeletePhoto(ctx context.Context, ref string)
}

// Coordinator creates, updates and deletes persons.
type Coordinator struct {
	dir     Directory
	faces   FaceIndex
	photos  Photos
	cleanup Cleanup

	compensateTimeout time.Duration
}

func NewCoordinator(dir Directory, faces FaceIndex, photos Photos, cleanup Cleanup) *Coordinator {
	return &Coordinator{
		dir:               dir,
		faces:             faces,
		photos:            photos,
		cleanup:           cleanup,
		compensateTimeout: 10 * time.Second,
	}
}

// CreatePerson stores a new person and, when photo is given, enrolls their
// face. If enrollment fails the row and the photo are removed again.
func (c *Coordinator) CreatePerson(ctx context.Context, in model.PersonInput, photo *model.Image) (model.Person, error) {
	if in.ClassID != nil && *in.ClassID == "" {
		in.ClassID = nil
	}
	if err := c.checkEmail(ctx, in.Email, ""); err != nil {
		return model.Person{}, err
	}
	if err := c.checkClass(ctx, in.ClassID); err != nil {
		return model.Person{}, err
	}

	var ref *string
	if photo != nil {
		saved, err := c.photos.Save(ctx, photo.Filename, photo.Data)
		if err != nil {
			return model.Person{}, fmt.Errorf("save photo: %w", err)
		}
		ref = &saved
	}

	person, err := c.dir.InsertPerson(ctx, in, ref)
	if err != nil {
		if ref != nil {
			c.discardPhoto(ctx, *ref)
		}
		return model.Person{}, err
	}
	if photo == nil {
		return person, nil
	}

	if err := c.faces.Enroll(ctx, person.ID, *photo); err != nil {
		log.Printf("enroll face for %s failed, rolling back: %v", person.ID, err)
		if c.removeRow(ctx, person.ID) {
			c.discardPhoto(ctx, *ref)
		}
		// The service may have stored the template before failing.
		c.cleanup.DeleteFace(ctx, person.ID)
		return model.Person{}, fmt.Errorf("enroll face: %w", err)
	}
	return person, nil
}

// UpdatePerson applies patch and, when photo is given, replaces the face
// template. The previous photo is deleted only after the template update
// succeeded; on failure the row goes back to it and the new photo is dropped.
func (c *Coordinator) UpdatePerson(ctx context.Context, id string, patch model.PersonPatch, photo *model.Image) (model.Person, error) {
	current, err := c.dir.GetPerson(ctx, id)
	if err != nil {
		return model.Person{}, fmt.Errorf("load person: %w", err)
	}
	if current == nil {
		return model.Person{}, directory.ErrPersonNotFound
	}
	if patch.Email != nil && *patch.Email != current.Email {
		if err := c.checkEmail(ctx, *patch.Email, id); err != nil {
			return model.Person{}, err
		}
	}
	if err := c.checkClass(ctx, patch.ClassID); err != nil {
		return model.Person{}, err
	}

	if photo == nil {
		if patch.Empty() {
			return *current, nil
		}
		updated, _, err := c.dir.UpdatePerson(ctx, id, patch, nil)
		return updated, err
	}

	ref, err := c.photos.Save(ctx, photo.Filename, photo.Data)
	if err != nil {
		return model.Person{}, fmt.Errorf("save photo: %w", err)
	}

	updated, superseded, err := c.dir.UpdatePerson(ctx, id, patch, &ref)
	if err != nil {
		c.discardPhoto(ctx, ref)
		return model.Person{}, err
	}

	if err := c.faces.Update(ctx, id, *photo); err != nil {
		log.Printf("update face for %s failed, restoring previous photo: %v", id, err)
		snapshot := *current
		snapshot.Photo = superseded
		if c.restoreRow(ctx, snapshot, ref) {
			c.discardPhoto(ctx, ref)
		}
		return model.Person{}, fmt.Errorf("update face: %w", err)
	}

	if superseded != nil {
		c.cleanup.DeletePhoto(ctx, *superseded)
	}
	return updated, nil
}

// DeletePerson removes the person. Their face template and photo are
// removed asynchronously; those outcomes are only logged.
func (c *Coordinator) DeletePerson(ctx context.Context, id string) error {
	person, err := c.dir.DeletePerson(ctx, id)
	if err != nil {
		return err
	}
	c.cleanup.DeleteFace(ctx, person.ID)
	if person.Photo != nil {
		c.cleanup.DeletePhoto(ctx, *person.Photo)
	}
	return nil
}

func (c *Coordinator) checkEmail(ctx context.Context, email, excludeID string) error {
	taken, err := c.dir.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return directory.ErrDuplicateEmail
	}
	return nil
}

// checkClass verifies a referenced class exists. nil and "" reference none.
func (c *Coordinator) checkClass(ctx context.Context, classID *string) error {
	if classID == nil || *classID == "" {
		return nil
	}
	ok, err := c.dir.ClassExists(ctx, *classID)
	if err != nil {
		return fmt.Errorf("check class: %w", err)
	}
	if !ok {
		return directory.ErrUnknownClass
	}
	return nil
}

// compensationContext outlives the request: a client that gave up must not
// stop the rollback halfway.
func (c *Coordinator) compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.compensateTimeout)
}

// removeRow reports whether the row is gone. A row that survived still
// references its photo, so the photo has to stay too.
func (c *Coordinator) removeRow(ctx context.Context, id string) bool {
	ctx, cancel := c.compensationContext(ctx)
	defer cancel()
	_, err := c.dir.DeletePerson(ctx, id)
	if errors.Is(err, directory.ErrPersonNotFound) {
		err = nil
	}
	metrics.Compensations.WithLabelValues("delete_row", metrics.Result(err)).Inc()
	if err != nil {
		log.Printf("compensation: could not delete person %s: %v", id, err)
		return false
	}
	return true
}

// restoreRow reports whether the row was put back. When it was not, the row
// has moved on to another write, which then owns our photo.
func (c *Coordinator) restoreRow(ctx context.Context, snapshot model.Person, expectedPhoto string) bool {
	ctx, cancel := c.compensationContext(ctx)
	defer cancel()
	ok, err := c.dir.RestorePerson(ctx, snapshot, expectedPhoto)
	switch {
	case err != nil:
		metrics.Compensations.WithLabelValues("restore_row", "error").Inc()
		log.Printf("compensation: could not restore person %s: %v", snapshot.ID, err)
		return false
	case !ok:
		metrics.Compensations.WithLabelValues("restore_row", "superseded").Inc()
		log.Printf("compensation: person %s changed concurrently, keeping %s", snapshot.ID, expectedPhoto)
		return false
	}
	metrics.Compensations.WithLabelValues("restore_row", "ok").Inc()
	return true
}

func (c *Coordinator) discardPhoto(ctx context.Context, ref string) {
	ctx, cancel := c.compensationContext(ctx)
	defer cancel()
	err := c.photos.Delete(ctx, ref)
	metrics.Compensations.WithLabelValues("delete_photo", metrics.Result(err)).Inc()
	if err != nil {
		log.Printf("compensation: could not delete photo %s: %v", ref, err)
	}
}
