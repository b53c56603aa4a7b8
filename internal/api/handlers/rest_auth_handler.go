package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zsleinadg/WebCarros/internal/api/middleware"
	"github.com/zsleinadg/WebCarros/internal/auth"
	"github.com/zsleinadg/WebCarros/internal/config"
	"github.com/zsleinadg/WebCarros/internal/draft"
	"github.com/zsleinadg/WebCarros/internal/services"
)

// IWelcomeMailer schedules the post-signup welcome email.
type IWelcomeMailer interface {
	EnqueueWelcomeEmail(ctx context.Context, to, name string) error
}

// RestAuthHandler handles signup, signin and signout.
type RestAuthHandler struct {
	cfg         *config.Config
	userService services.IUserService
	drafts      *draft.Registry
	mailer      IWelcomeMailer // optional
	passwordRe  *regexp.Regexp
}

// NewRestAuthHandler creates a new RestAuthHandler.
func NewRestAuthHandler(cfg *config.Config, userService services.IUserService, drafts *draft.Registry, mailer IWelcomeMailer) *RestAuthHandler {
	return &RestAuthHandler{
		cfg:         cfg,
		userService: userService,
		drafts:      drafts,
		mailer:      mailer,
		passwordRe:  regexp.MustCompile(cfg.PasswordRegexp),
	}
}

type signUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token string    `json:"token"`
	User  userBrief `json:"user"`
}

type userBrief struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SignUp handles POST /v1/auth/signup
func (h *RestAuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if !h.passwordRe.MatchString(req.Password) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Password does not meet requirements"})
		return
	}

	user, err := h.userService.SignUp(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	if h.mailer != nil {
		if err := h.mailer.EnqueueWelcomeEmail(c.Request.Context(), user.Email, user.Name); err != nil {
			log.Printf("WARN: failed to enqueue welcome email for %s: %v", user.Email, err)
		}
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.Name, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, sessionResponse{
		Token: token,
		User:  userBrief{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

// SignIn handles POST /v1/auth/signin
func (h *RestAuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.Name, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Token: token,
		User:  userBrief{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

// SignOut handles POST /v1/auth/signout. The token itself stays valid
// until expiry; what gets torn down is the server-side draft state.
func (h *RestAuthHandler) SignOut(c *gin.Context) {
	userID := c.GetString(middleware.ContextKeyUserID)
	if h.drafts != nil {
		h.drafts.Release(c.Request.Context(), userID)
	}
	c.Status(http.StatusNoContent)
}

type updateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// GetProfile handles GET /v1/dashboard/profile
func (h *RestAuthHandler) GetProfile(c *gin.Context) {
	userID := c.GetString(middleware.ContextKeyUserID)

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, userBrief{ID: user.ID, Name: user.Name, Email: user.Email})
}

// UpdateProfile handles PUT /v1/dashboard/profile
func (h *RestAuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	userID := c.GetString(middleware.ContextKeyUserID)
	if err := h.userService.UpdateProfile(c.Request.Context(), userID, req.Name); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": userID, "name": req.Name})
}

// DeleteAccount handles DELETE /v1/dashboard/account. The account is
// soft-deleted and any in-progress draft is released with its previews.
func (h *RestAuthHandler) DeleteAccount(c *gin.Context) {
	userID := c.GetString(middleware.ContextKeyUserID)

	if err := h.userService.Delete(c.Request.Context(), userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete account"})
		return
	}

	if h.drafts != nil {
		h.drafts.Release(c.Request.Context(), userID)
	}
	c.Status(http.StatusNoContent)
}
