// Package handler exposes persons, classes and attendance over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"presence/internal/apperr"
	"presence/internal/attendance"
	"presence/internal/model"
)

// Persons mutates persons together with their face templates.
type Persons interface {
	CreatePerson(ctx context.Context, in model.PersonInput, photo *model.Image) (model.Person, error)
	UpdatePerson(ctx context.Context, id string, patch model.PersonPatch, photo *model.Image) (model.Person, error)
	DeletePerson(ctx context.Context, id string) error
}

// Directory reads persons and manages classes.
type Directory interface {
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	ListPersons(ctx context.Context, limit, offset int) ([]model.Person, error)
	CountPersons(ctx context.Context) (int, error)

	GetClass(ctx context.Context, id string) (model.ClassDetail, error)
	ListClasses(ctx context.Context, limit, offset int) ([]model.Class, error)
	CountClasses(ctx context.Context) (int, error)
	InsertClass(ctx context.Context, name string) (model.Class, error)
	RenameClass(ctx context.Context, id string, name *string) (model.Class, error)
	DeleteClass(ctx context.Context, id string) error
}

// Attendance records and lists presence.
type Attendance interface {
	Record(ctx context.Context, image model.Image) (attendance.Result, error)
	Today(ctx context.Context, page, limit int) (attendance.Page, error)
	ListDay(ctx context.Context, date time.Time, page, limit int) (attendance.Page, error)
}

// PhotoLinker turns a stored photo reference into a URL.
type PhotoLinker interface {
	URL(ref string) string
}

var (
	ErrRouteNotFound  = apperr.NotFound("NotFound", "route not found")
	errFileTooLarge   = apperr.BadRequest("BadRequest", "file too large")
	errFileType       = apperr.BadRequest("BadRequest", "Invalid file type. Only JPEG and PNG are allowed.")
	errInvalidRequest = apperr.Validation("ValidationFailed", "invalid request")
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type Handler struct {
	dir        Directory
	persons    Persons
	attendance Attendance
	photos     PhotoLinker

	dev       bool
	maxUpload int64
}

// New creates the handler. dev adds error details to responses.
func New(dir Directory, persons Persons, att Attendance, photos PhotoLinker, dev bool, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return &Handler{
		dir:        dir,
		persons:    persons,
		attendance: att,
		photos:     photos,
		dev:        dev,
		maxUpload:  maxUpload,
	}
}

// Register mounts every route on r. kiosk runs in front of POST /presence.
func (h *Handler) Register(r gin.IRouter, kiosk ...gin.HandlerFunc) {
	users := r.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.POST("", h.CreateUser)
		users.PUT("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
	}

	classes := r.Group("/classes")
	{
		classes.GET("", h.ListClasses)
		classes.GET("/:id", h.GetClass)
		classes.POST("", h.CreateClass)
		classes.PUT("/:id", h.UpdateClass)
		classes.DELETE("/:id", h.DeleteClass)
	}

	presence := r.Group("/presence")
	{
		presence.POST("", append(kiosk, h.RecordPresence)...)
		presence.GET("", h.ListPresence)
	}
}

// NotFound answers unknown routes with the error envelope.
func (h *Handler) NotFound(c *gin.Context) {
	h.fail(c, ErrRouteNotFound)
}

// ---------- Responses ----------

func ok(c *gin.Context, status int, data any, message string) {
	body := gin.H{"data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

func paged(c *gin.Context, data any, page, lastPage int) {
	c.JSON(http.StatusOK, gin.H{"data": data, "page": page, "lastPage": lastPage})
}

// fail writes the error envelope. Untyped errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	body := gin.H{
		"message": apperr.Message(err),
		"type":    apperr.TypeOf(err),
	}
	if h.dev {
		body["stack"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

// invalid wraps a binding error so its text reaches the client.
func invalid(err error) error {
	return errInvalidRequest.WithMessage(err.Error()).Wrap(err)
}

// ---------- Pagination ----------

const maxLimit = 100

// pagination reads page and limit, falling back to 1 and 10.
func pagination(c *gin.Context) (page, limit int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func lastPage(total, limit int) int {
	return (total + limit - 1) / limit
}

// ---------- Uploads ----------

// readImage returns the uploaded file in field, or nil when none was sent.
// Only JPEG and PNG up to maxUpload bytes are accepted.
func (h *Handler) readImage(c *gin.Context, field string) (*model.Image, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, invalid(err)
	}
	if header.Size > h.maxUpload {
		return nil, errFileTooLarge.WithMessage("file too large, max " + sizeLabel(h.maxUpload))
	}

	data, err := readAll(header)
	if err != nil {
		return nil, err
	}
	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		return nil, errFileType
	}
	return &model.Image{Filename: header.Filename, ContentType: contentType, Data: data}, nil
}

func readAll(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return strconv.FormatInt(n>>20, 10) + "MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
