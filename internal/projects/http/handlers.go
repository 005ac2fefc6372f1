package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/appforge-labs/appforge-backend/internal/auth"
	"github.com/appforge-labs/appforge-backend/internal/projects/domain"
	"github.com/appforge-labs/appforge-backend/internal/projects/repository"
)

// Handler serves the dashboard's project list: read and delete. Creation
// and mutation belong to the builder workflow.
type Handler struct {
	repo *repository.ProjectRepository
}

func Register(rg *gin.RouterGroup, repo *repository.ProjectRepository) {
	h := &Handler{repo: repo}

	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	userID := auth.UserUID(c)
	items, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	p, ok := h.owned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

// delete removes the record permanently. The dashboard confirms first;
// there is no soft delete.
func (h *Handler) delete(c *gin.Context) {
	p, ok := h.owned(c)
	if !ok {
		return
	}

	if err := h.repo.Delete(c.Request.Context(), p.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) owned(c *gin.Context) (*domain.Project, bool) {
	p, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		}
		return nil, false
	}
	if p.UserID != auth.UserUID(c) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return nil, false
	}
	return p, true
}
