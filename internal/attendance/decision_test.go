package attendance

import (
	"errors"
	"testing"
	"time"
)

var testWindow = Window{CheckIn: 7 * time.Hour, CheckOut: 14*time.Hour + 30*time.Minute}

func at(hhmm string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", "2024-09-02 "+hhmm, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func TestDecide_CheckInStatus(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"BeforeThreshold", at("06:55:00"), StatusPresent},
		{"ExactlyAtThreshold", at("07:00:00"), StatusPresent},
		{"JustAfterThreshold", at("07:00:00").Add(time.Millisecond), StatusLate},
		{"Late", at("07:05:00"), StatusLate},
		{"AtCheckoutThreshold", at("14:30:00"), StatusLate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Decide(tc.now, testWindow, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Action != ActionCheckIn {
				t.Fatalf("expected check-in, got %s", d.Action)
			}
			if d.Record.Status != tc.want {
				t.Errorf("expected status %s, got %s", tc.want, d.Record.Status)
			}
			if d.Record.CheckIn == nil || !d.Record.CheckIn.Equal(tc.now) {
				t.Errorf("expected check-in at %s, got %v", tc.now, d.Record.CheckIn)
			}
			if d.Record.CheckOut != nil {
				t.Errorf("expected no check-out, got %v", d.Record.CheckOut)
			}
			if got := d.Record.Date.Format(time.DateOnly); got != "2024-09-02" {
				t.Errorf("expected date 2024-09-02, got %s", got)
			}
		})
	}
}

func TestDecide_RepeatedCheckInIsNoOp(t *testing.T) {
	existing := &Record{ID: "r1", Status: StatusPresent, CheckIn: ptr(at("06:55:00"))}

	d, err := Decide(at("07:05:00"), testWindow, existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionAlreadyCheckedIn {
		t.Fatalf("expected already checked in, got %s", d.Action)
	}
	if d.Record.Status != StatusPresent || !d.Record.CheckIn.Equal(at("06:55:00")) {
		t.Errorf("existing record must be returned unchanged, got %+v", d.Record)
	}
	if d.Action.Changed() {
		t.Error("no-op must not report a change")
	}
}

func TestDecide_CheckOutWithoutCheckIn(t *testing.T) {
	_, err := Decide(at("14:40:00"), testWindow, nil)
	if !errors.Is(err, ErrNotCheckedIn) {
		t.Errorf("expected ErrNotCheckedIn, got %v", err)
	}
}

func TestDecide_CheckOutKeepsStatus(t *testing.T) {
	for _, status := range []Status{StatusPresent, StatusLate} {
		t.Run(string(status), func(t *testing.T) {
			existing := &Record{ID: "r1", Status: status, CheckIn: ptr(at("06:55:00"))}

			d, err := Decide(at("14:40:00"), testWindow, existing)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Action != ActionCheckOut {
				t.Fatalf("expected check-out, got %s", d.Action)
			}
			if d.Record.Status != status {
				t.Errorf("status changed from %s to %s", status, d.Record.Status)
			}
			if d.Record.CheckOut == nil || !d.Record.CheckOut.Equal(at("14:40:00")) {
				t.Errorf("expected check-out at 14:40, got %v", d.Record.CheckOut)
			}
			if existing.CheckOut != nil {
				t.Error("Decide must not mutate the existing record")
			}
		})
	}
}

func TestDecide_RepeatedCheckOutIsNoOp(t *testing.T) {
	existing := &Record{ID: "r1", Status: StatusPresent, CheckIn: ptr(at("06:55:00")), CheckOut: ptr(at("14:40:00"))}

	d, err := Decide(at("14:45:00"), testWindow, existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionAlreadyCheckedOut {
		t.Fatalf("expected already checked out, got %s", d.Action)
	}
	if !d.Record.CheckOut.Equal(at("14:40:00")) {
		t.Errorf("expected check-out to stay 14:40, got %v", d.Record.CheckOut)
	}
}

// Walks the documented day: 06:55 in, 07:05 ignored, 14:40 out, 14:45 ignored.
func TestDecide_FullDay(t *testing.T) {
	var rec *Record
	steps := []struct {
		now      string
		action   Action
		checkIn  string
		checkOut string
	}{
		{"06:55:00", ActionCheckIn, "06:55:00", ""},
		{"07:05:00", ActionAlreadyCheckedIn, "06:55:00", ""},
		{"14:40:00", ActionCheckOut, "06:55:00", "14:40:00"},
		{"14:45:00", ActionAlreadyCheckedOut, "06:55:00", "14:40:00"},
	}
	for _, step := range steps {
		d, err := Decide(at(step.now), testWindow, rec)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step.now, err)
		}
		if d.Action != step.action {
			t.Fatalf("%s: expected %s, got %s", step.now, step.action, d.Action)
		}
		r := d.Record
		rec = &r
		if rec.Status != StatusPresent {
			t.Errorf("%s: expected status present, got %s", step.now, rec.Status)
		}
		if got := rec.CheckIn.Format(time.TimeOnly); got != step.checkIn {
			t.Errorf("%s: expected check-in %s, got %s", step.now, step.checkIn, got)
		}
		if step.checkOut == "" && rec.CheckOut != nil {
			t.Errorf("%s: expected no check-out", step.now)
		}
		if step.checkOut != "" && (rec.CheckOut == nil || rec.CheckOut.Format(time.TimeOnly) != step.checkOut) {
			t.Errorf("%s: expected check-out %s, got %v", step.now, step.checkOut, rec.CheckOut)
		}
	}
}

func TestTimeOfDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	utc := time.Date(2024, 9, 1, 23, 30, 0, 0, time.UTC)
	local := utc.In(loc)

	if got := TimeOfDay(local); got != 6*time.Hour+30*time.Minute {
		t.Errorf("expected 06:30 local, got %s", got)
	}
	if got := DateOf(local).Format(time.DateOnly); got != "2024-09-02" {
		t.Errorf("expected local date 2024-09-02, got %s", got)
	}
}
