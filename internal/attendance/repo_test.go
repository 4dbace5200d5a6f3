//go:build integration

package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"presence/internal/attendance"
	"presence/internal/store/storetest"
)

func TestRepository_CreateIsUniquePerDay(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	personID := uuid.NewString()
	if _, err := db.Client.ExecContext(ctx,
		`INSERT INTO persons (id, name, email) VALUES ($1, 'Alice', 'alice@example.com')`, personID); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	repo := attendance.NewRepository(db.Client)
	day := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		duplicate int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checkIn := day.Add(7*time.Hour + time.Duration(i)*time.Second)
			_, err := repo.Create(ctx, attendance.Record{
				PersonID: personID,
				Date:     day,
				Status:   attendance.StatusPresent,
				CheckIn:  &checkIn,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, attendance.ErrDuplicate):
				duplicate++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if created != 1 || duplicate != n-1 {
		t.Errorf("expected 1 created and %d duplicates, got %d and %d", n-1, created, duplicate)
	}
	count, err := repo.CountByDate(ctx, day)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored record, got %d", count)
	}
}

func TestRepository_CheckoutOnce(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	personID := uuid.NewString()
	if _, err := db.Client.ExecContext(ctx,
		`INSERT INTO persons (id, name, email) VALUES ($1, 'Bob', 'bob@example.com')`, personID); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	repo := attendance.NewRepository(db.Client)
	day := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	checkIn := day.Add(6*time.Hour + 55*time.Minute)

	rec, err := repo.Create(ctx, attendance.Record{PersonID: personID, Date: day, Status: attendance.StatusLate, CheckIn: &checkIn})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := repo.FindToday(ctx, personID, day)
	if err != nil || found == nil {
		t.Fatalf("find today: %v %v", found, err)
	}
	if found.ID != rec.ID || found.Status != attendance.StatusLate {
		t.Errorf("unexpected record: %+v", found)
	}

	first := day.Add(14*time.Hour + 40*time.Minute)
	updated, err := repo.SetCheckout(ctx, rec.ID, first)
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	if updated.CheckOut == nil || !updated.CheckOut.Equal(first) {
		t.Errorf("expected checkout %s, got %v", first, updated.CheckOut)
	}
	if updated.Status != attendance.StatusLate {
		t.Errorf("checkout must not change status, got %s", updated.Status)
	}

	_, err = repo.SetCheckout(ctx, rec.ID, first.Add(5*time.Minute))
	if !errors.Is(err, attendance.ErrAlreadyCheckedOut) {
		t.Errorf("expected ErrAlreadyCheckedOut, got %v", err)
	}

	list, err := repo.ListByDate(ctx, day, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].PersonName != "Bob" || !list[0].CheckOut.Equal(first) {
		t.Errorf("unexpected listing: %+v", list)
	}
}

func TestRepository_FindTodayMissing(t *testing.T) {
	db := storetest.New(t)
	repo := attendance.NewRepository(db.Client)

	rec, err := repo.FindToday(context.Background(), uuid.NewString(), time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Errorf("expected no record, got %+v", rec)
	}
}
