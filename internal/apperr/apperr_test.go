package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errSample = NotFound("SampleMissing", "sample not found")

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"NotFound", errSample, http.StatusNotFound},
		{"BadRequest", BadRequest("BadRequest", "bad"), http.StatusBadRequest},
		{"Validation", Validation("ValidationFailed", "invalid"), http.StatusUnprocessableEntity},
		{"Wrapped", fmt.Errorf("lookup: %w", errSample), http.StatusNotFound},
		{"Untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Status(tc.err); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestIs_MatchesWrappedCopies(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("recognize: %w", errSample.Wrap(cause))

	if !errors.Is(err, errSample) {
		t.Error("expected wrapped copy to match sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to remain reachable")
	}
	if errors.Is(err, BadRequest("SampleMissing", "x")) {
		t.Error("expected different kind not to match")
	}
}

func TestMessageAndType(t *testing.T) {
	if got := Message(errors.New("secret detail")); got != "Internal server error" {
		t.Errorf("untyped message leaked: %q", got)
	}
	if got := TypeOf(errors.New("x")); got != "Internal" {
		t.Errorf("expected Internal, got %q", got)
	}
	if got := Message(errSample.WithMessage("user not found")); got != "user not found" {
		t.Errorf("expected overridden message, got %q", got)
	}
	if got := TypeOf(errSample); got != "SampleMissing" {
		t.Errorf("expected SampleMissing, got %q", got)
	}
}
