package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"presence/internal/apperr"
	"presence/internal/metrics"
	"presence/internal/model"
)

var (
	ErrImageRequired = apperr.BadRequest("BadRequest", "no image file provided")
	ErrUserNotFound  = apperr.NotFound("NotFound", "user not found")
)

// Recognizer resolves an image to a person id.
type Recognizer interface {
	Recognize(ctx context.Context, image model.Image) (string, error)
}

// PersonLookup reads persons from the directory.
type PersonLookup interface {
	GetPerson(ctx context.Context, id string) (*model.Person, error)
}

// Store persists records. See Repository.
type Store interface {
	FindToday(ctx context.Context, personID string, date time.Time) (*Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	SetCheckout(ctx context.Context, id string, at time.Time) (Record, error)
	ListByDate(ctx context.Context, date time.Time, limit, offset int) ([]Record, error)
	CountByDate(ctx context.Context, date time.Time) (int, error)
}

// Result is what a recognition produced.
type Result struct {
	Person model.Person
	Record Record
	Action Action
}

// Service records attendance for recognized faces.
type Service struct {
	faces   Recognizer
	persons PersonLookup
	store   Store
	window  Window
	loc     *time.Location
	now     func() time.Time
}

// NewService creates a service. Times of day are evaluated in loc.
func NewService(faces Recognizer, persons PersonLookup, store Store, window Window, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		faces:   faces,
		persons: persons,
		store:   store,
		window:  window,
		loc:     loc,
		now:     time.Now,
	}
}

// Record resolves image to a person and records a check-in or check-out.
func (s *Service) Record(ctx context.Context, image model.Image) (Result, error) {
	if len(image.Data) == 0 {
		return Result{}, ErrImageRequired
	}

	started := time.Now()
	personID, err := s.faces.Recognize(ctx, image)
	metrics.RecognizeDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.Recognitions.WithLabelValues(apperr.TypeOf(err)).Inc()
		return Result{}, fmt.Errorf("recognize: %w", err)
	}

	person, err := s.persons.GetPerson(ctx, personID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup person %s: %w", personID, err)
	}
	if person == nil {
		log.Printf("recognized id %s has no matching person", personID)
		metrics.Recognitions.WithLabelValues("UnknownPerson").Inc()
		return Result{}, ErrUserNotFound
	}

	now := s.now().In(s.loc)
	rec, action, err := s.apply(ctx, person.ID, now)
	if err != nil {
		metrics.Recognitions.WithLabelValues(apperr.TypeOf(err)).Inc()
		return Result{}, err
	}
	metrics.Recognitions.WithLabelValues(action.String()).Inc()
	return Result{Person: *person, Record: rec.In(s.loc), Action: action}, nil
}

func (s *Service) apply(ctx context.Context, personID string, now time.Time) (Record, Action, error) {
	date := DateOf(now)
	existing, err := s.store.FindToday(ctx, personID, date)
	if err != nil {
		return Record{}, 0, fmt.Errorf("find today's record: %w", err)
	}

	d, err := Decide(now, s.window, existing)
	if err != nil {
		return Record{}, 0, err
	}

	if !d.Action.Changed() {
		return d.Record, d.Action, nil
	}

	if d.Action == ActionCheckOut {
		updated, err := s.store.SetCheckout(ctx, d.Record.ID, *d.Record.CheckOut)
		if errors.Is(err, ErrAlreadyCheckedOut) {
			winner, err := s.reread(ctx, personID, date)
			return winner, ActionAlreadyCheckedOut, err
		}
		if err != nil {
			return Record{}, 0, fmt.Errorf("set checkout: %w", err)
		}
		return updated, ActionCheckOut, nil
	}

	d.Record.PersonID = personID
	created, err := s.store.Create(ctx, d.Record)
	if errors.Is(err, ErrDuplicate) {
		// A concurrent recognition checked in first.
		winner, err := s.reread(ctx, personID, date)
		return winner, ActionAlreadyCheckedIn, err
	}
	if err != nil {
		return Record{}, 0, fmt.Errorf("create record: %w", err)
	}
	return created, ActionCheckIn, nil
}

func (s *Service) reread(ctx context.Context, personID string, date time.Time) (Record, error) {
	rec, err := s.store.FindToday(ctx, personID, date)
	if err != nil {
		return Record{}, fmt.Errorf("reload today's record: %w", err)
	}
	if rec == nil {
		return Record{}, fmt.Errorf("record for %s on %s vanished", personID, date.Format(time.DateOnly))
	}
	return *rec, nil
}

// Page is one page of a listing.
type Page struct {
	Records  []Record
	Page     int
	LastPage int
}

// Today lists the records for the current day.
func (s *Service) Today(ctx context.Context, page, limit int) (Page, error) {
	return s.ListDay(ctx, DateOf(s.now().In(s.loc)), page, limit)
}

// ListDay lists the records for date, page numbering starts at 1.
func (s *Service) ListDay(ctx context.Context, date time.Time, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	records, err := s.store.ListByDate(ctx, date, limit, (page-1)*limit)
	if err != nil {
		return Page{}, fmt.Errorf("list records: %w", err)
	}
	total, err := s.store.CountByDate(ctx, date)
	if err != nil {
		return Page{}, fmt.Errorf("count records: %w", err)
	}
	for i := range records {
		records[i] = records[i].In(s.loc)
	}
	if records == nil {
		records = []Record{}
	}
	return Page{Records: records, Page: page, LastPage: (total + limit - 1) / limit}, nil
}
