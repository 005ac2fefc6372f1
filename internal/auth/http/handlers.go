package http

import (
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/appforge-labs/appforge-backend/internal/auth"
)

// Handler covers the identity-provider operations the backend owns:
// account creation and password reset. Sign-in itself happens against
// Firebase on the client; the backend only verifies ID tokens.
type Handler struct {
	client *fbauth.Client
}

func NewHandler(client *fbauth.Client) *Handler {
	return &Handler{client: client}
}

func Register(rg *gin.RouterGroup, client *fbauth.Client) {
	h := NewHandler(client)

	rg.POST("/signup", h.signup)
	rg.POST("/password-reset", h.passwordReset)
}

// RegisterProtected mounts routes that require a verified ID token.
func RegisterProtected(rg *gin.RouterGroup, client *fbauth.Client) {
	h := NewHandler(client)

	rg.GET("/me", h.profile)
}

type signupReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "email and password are required"})
		return
	}

	params := (&fbauth.UserToCreate{}).
		Email(strings.TrimSpace(req.Email)).
		Password(req.Password)

	user, err := h.client.CreateUser(c.Request.Context(), params)
	if err != nil {
		status := http.StatusBadRequest
		if fbauth.IsEmailAlreadyExists(err) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"ok": false, "error": auth.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "user": gin.H{
		"id":    user.UID,
		"email": user.Email,
	}})
}

type passwordResetReq struct {
	Email string `json:"email"`
}

func (h *Handler) passwordReset(c *gin.Context) {
	var req passwordResetReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "email is required"})
		return
	}

	link, err := h.client.PasswordResetLink(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		// Do not reveal whether the account exists.
		if fbauth.IsUserNotFound(err) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": auth.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "reset_link": link})
}

func (h *Handler) profile(c *gin.Context) {
	uid := auth.UserUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}

	user, err := h.client.GetUser(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": gin.H{
		"id":        user.UID,
		"email":     user.Email,
		"full_name": user.DisplayName,
	}})
}
