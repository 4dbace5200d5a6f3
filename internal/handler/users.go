package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"presence/internal/directory"
	"presence/internal/model"
)

type createUserRequest struct {
	Name    string  `form:"name" binding:"required"`
	Email   string  `form:"email" binding:"required,email"`
	ClassID *string `form:"classId"`
}

// Every field is optional. An empty classId removes the class.
type updateUserRequest struct {
	Name    *string `form:"name" binding:"omitempty,min=1"`
	Email   *string `form:"email" binding:"omitempty,email"`
	ClassID *string `form:"classId"`
}

// withPhotoURL fills the public URL of the stored photo.
func (h *Handler) withPhotoURL(p model.Person) model.Person {
	if p.Photo != nil && h.photos != nil {
		p.PhotoURL = h.photos.URL(*p.Photo)
	}
	return p
}

func (h *Handler) ListUsers(c *gin.Context) {
	page, limit := pagination(c)
	ctx := c.Request.Context()

	persons, err := h.dir.ListPersons(ctx, limit, (page-1)*limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	total, err := h.dir.CountPersons(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	for i := range persons {
		persons[i] = h.withPhotoURL(persons[i])
	}
	paged(c, persons, page, lastPage(total, limit))
}

func (h *Handler) GetUser(c *gin.Context) {
	p, err := h.dir.GetPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if p == nil {
		h.fail(c, directory.ErrPersonNotFound)
		return
	}
	ok(c, http.StatusOK, h.withPhotoURL(*p), "")
}

// CreateUser expects multipart fields name, email, classId and an optional photo.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, invalid(err))
		return
	}
	photo, err := h.readImage(c, "photo")
	if err != nil {
		h.fail(c, err)
		return
	}

	p, err := h.persons.CreatePerson(c.Request.Context(), model.PersonInput{
		Name:    req.Name,
		Email:   req.Email,
		ClassID: req.ClassID,
	}, photo)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, h.withPhotoURL(p), "User created")
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, invalid(err))
		return
	}
	photo, err := h.readImage(c, "photo")
	if err != nil {
		h.fail(c, err)
		return
	}

	p, err := h.persons.UpdatePerson(c.Request.Context(), c.Param("id"), model.PersonPatch{
		Name:    req.Name,
		Email:   req.Email,
		ClassID: req.ClassID,
	}, photo)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, h.withPhotoURL(p), "User updated")
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.persons.DeletePerson(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
