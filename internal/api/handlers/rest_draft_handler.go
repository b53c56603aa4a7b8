package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zsleinadg/WebCarros/internal/api/middleware"
	"github.com/zsleinadg/WebCarros/internal/draft"
	"github.com/zsleinadg/WebCarros/internal/models"
	"github.com/zsleinadg/WebCarros/internal/session"
	"github.com/zsleinadg/WebCarros/internal/validation"
)

// RestDraftHandler exposes the per-user listing draft: image uploads,
// form submission and discarding.
type RestDraftHandler struct {
	drafts *draft.Registry
}

// NewRestDraftHandler creates a new RestDraftHandler.
func NewRestDraftHandler(drafts *draft.Registry) *RestDraftHandler {
	return &RestDraftHandler{drafts: drafts}
}

// requestUser rebuilds the authenticated identity from context keys set
// by the auth middleware.
func requestUser(c *gin.Context) session.UserInfo {
	return session.UserInfo{
		ID:    c.GetString(middleware.ContextKeyUserID),
		Email: c.GetString(middleware.ContextKeyUserEmail),
		Name:  c.GetString(middleware.ContextKeyUserName),
	}
}

func (h *RestDraftHandler) manager(c *gin.Context) (*draft.Manager, bool) {
	mgr, err := h.drafts.For(c.Request.Context(), requestUser(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open draft"})
		return nil, false
	}
	return mgr, true
}

type draftImageResponse struct {
	models.CarImageRef
	PreviewPath string `json:"preview_path,omitempty"`
}

// AttachImage handles POST /v1/dashboard/draft/images (multipart form, field "image").
func (h *RestDraftHandler) AttachImage(c *gin.Context) {
	mgr, ok := h.manager(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image file"})
		return
	}

	img, err := mgr.Attach(c.Request.Context(), draft.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		switch {
		case errors.Is(err, draft.ErrInvalidImageType), errors.Is(err, draft.ErrImageTooLarge):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, draft.ErrNotSignedIn):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		}
		return
	}

	c.JSON(http.StatusCreated, draftImageResponse{
		CarImageRef: img.Ref(),
		PreviewPath: img.Preview.Path(),
	})
}

// DetachImage handles DELETE /v1/dashboard/draft/images/:name
func (h *RestDraftHandler) DetachImage(c *gin.Context) {
	mgr, ok := h.manager(c)
	if !ok {
		return
	}

	err := mgr.Detach(c.Request.Context(), c.Param("name"))
	if err != nil {
		switch {
		case errors.Is(err, draft.ErrNotAttached):
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not attached to draft"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove image"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// GetDraft handles GET /v1/dashboard/draft
func (h *RestDraftHandler) GetDraft(c *gin.Context) {
	mgr, ok := h.manager(c)
	if !ok {
		return
	}

	images := mgr.Images()
	refs := make([]models.CarImageRef, len(images))
	for i, img := range images {
		refs[i] = img.Ref()
	}

	c.JSON(http.StatusOK, gin.H{
		"form":   mgr.Form(),
		"images": refs,
	})
}

// SubmitCar handles POST /v1/dashboard/cars
func (h *RestDraftHandler) SubmitCar(c *gin.Context) {
	mgr, ok := h.manager(c)
	if !ok {
		return
	}

	var form validation.CarForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	mgr.SetForm(form)

	car, fieldErrors, err := mgr.Submit(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, draft.ErrNoImages):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, draft.ErrNotSignedIn):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	if fieldErrors != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fieldErrors})
		return
	}

	c.JSON(http.StatusCreated, car)
}

// DiscardDraft handles DELETE /v1/dashboard/draft
func (h *RestDraftHandler) DiscardDraft(c *gin.Context) {
	mgr, ok := h.manager(c)
	if !ok {
		return
	}

	mgr.Discard(c.Request.Context())
	c.Status(http.StatusNoContent)
}
