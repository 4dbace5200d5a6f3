package attendance

import (
	"encoding/json"
	"time"
)

// Status is fixed at check-in and never recomputed.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
)

// Record is a person's attendance for one calendar day.
type Record struct {
	ID        string
	PersonID  string
	Date      time.Time
	Status    Status
	CheckIn   *time.Time
	CheckOut  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	// PersonName is filled by listings that join persons.
	PersonName string
}

// In converts the record's instants to loc.
func (r Record) In(loc *time.Location) Record {
	if r.CheckIn != nil {
		t := r.CheckIn.In(loc)
		r.CheckIn = &t
	}
	if r.CheckOut != nil {
		t := r.CheckOut.In(loc)
		r.CheckOut = &t
	}
	r.CreatedAt = r.CreatedAt.In(loc)
	r.UpdatedAt = r.UpdatedAt.In(loc)
	return r
}

// MarshalJSON renders the date as YYYY-MM-DD and check times as HH:MM:SS.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string    `json:"id"`
		PersonID   string    `json:"userId"`
		PersonName string    `json:"name,omitempty"`
		Date       string    `json:"date"`
		Status     Status    `json:"status"`
		CheckIn    *string   `json:"checkIn"`
		CheckOut   *string   `json:"checkOut"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}{
		ID:         r.ID,
		PersonID:   r.PersonID,
		PersonName: r.PersonName,
		Date:       r.Date.Format(time.DateOnly),
		Status:     r.Status,
		CheckIn:    clock(r.CheckIn),
		CheckOut:   clock(r.CheckOut),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	})
}

func clock(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.TimeOnly)
	return &s
}
