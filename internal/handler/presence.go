package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"presence/internal/apperr"
	"presence/internal/attendance"
)

var errInvalidDate = apperr.Validation("ValidationFailed", "date must be formatted as YYYY-MM-DD")

var presenceMessages = map[attendance.Action]string{
	attendance.ActionCheckIn:           "Check-in recorded",
	attendance.ActionCheckOut:          "Check-out recorded",
	attendance.ActionAlreadyCheckedIn:  "Already checked in today",
	attendance.ActionAlreadyCheckedOut: "Already checked out today",
}

// RecordPresence recognizes the multipart "image" and records a check-in or
// check-out for the matched person.
func (h *Handler) RecordPresence(c *gin.Context) {
	image, err := h.readImage(c, "image")
	if err != nil {
		h.fail(c, err)
		return
	}
	if image == nil {
		h.fail(c, attendance.ErrImageRequired)
		return
	}

	res, err := h.attendance.Record(c.Request.Context(), *image)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"user":       h.withPhotoURL(res.Person),
		"attendance": res.Record,
		"status":     res.Action.String(),
	}, presenceMessages[res.Action])
}

// ListPresence lists today's records, or those of ?date=YYYY-MM-DD.
func (h *Handler) ListPresence(c *gin.Context) {
	page, limit := pagination(c)
	ctx := c.Request.Context()

	var (
		res attendance.Page
		err error
	)
	if raw := c.Query("date"); raw != "" {
		day, perr := time.Parse(time.DateOnly, raw)
		if perr != nil {
			h.fail(c, errInvalidDate)
			return
		}
		res, err = h.attendance.ListDay(ctx, day, page, limit)
	} else {
		res, err = h.attendance.Today(ctx, page, limit)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	paged(c, res.Records, res.Page, res.LastPage)
}
