package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createClassRequest struct {
	Name string `json:"name" binding:"required"`
}

type updateClassRequest struct {
	Name *string `json:"name" binding:"omitempty,min=1"`
}

func (h *Handler) ListClasses(c *gin.Context) {
	page, limit := pagination(c)
	ctx := c.Request.Context()

	classes, err := h.dir.ListClasses(ctx, limit, (page-1)*limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	total, err := h.dir.CountClasses(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	paged(c, classes, page, lastPage(total, limit))
}

// GetClass returns the class together with its students.
func (h *Handler) GetClass(c *gin.Context) {
	detail, err := h.dir.GetClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	for i := range detail.Students {
		detail.Students[i] = h.withPhotoURL(detail.Students[i])
	}
	ok(c, http.StatusOK, detail, "")
}

func (h *Handler) CreateClass(c *gin.Context) {
	var req createClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, invalid(err))
		return
	}
	class, err := h.dir.InsertClass(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, class, "Class created")
}

func (h *Handler) UpdateClass(c *gin.Context) {
	var req updateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, invalid(err))
		return
	}
	class, err := h.dir.RenameClass(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, class, "Class updated")
}

// DeleteClass refuses while any student still belongs to the class.
func (h *Handler) DeleteClass(c *gin.Context) {
	if err := h.dir.DeleteClass(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
