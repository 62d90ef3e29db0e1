package handlers

import (
	"time"

	"casedesk/internal/config"
	"casedesk/internal/models"
	"casedesk/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
	sessions    *services.SessionManager
	cfg         *config.Config
}

func NewAuthHandler(authService *services.AuthService, sessions *services.SessionManager, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		cfg:         cfg,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *models.User `json:"user"`
}

// Login handles user login. A successful credential check establishes the
// user's single active session, displacing any session open elsewhere.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	user, err := h.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(401, gin.H{"error": "Invalid credentials"})
		return
	}

	expiresAt := time.Now().Add(h.cfg.SessionTTL())
	token, err := h.authService.GenerateAccessToken(user, expiresAt)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to generate token"})
		return
	}

	refreshToken, err := services.NewRefreshToken()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to generate token"})
		return
	}

	device := services.DeviceContext{
		UserAgent:     c.GetHeader("User-Agent"),
		SourceAddress: c.ClientIP(),
	}
	sess, err := h.sessions.CreateUniqueSession(c.Request.Context(), user, token, refreshToken, device)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to create session"})
		return
	}

	user.PasswordHash = ""
	c.JSON(200, LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		ExpiresAt:    sess.ExpiresAt,
		User:         user,
	})
}

// Logout terminates the caller's own session
func (h *AuthHandler) Logout(c *gin.Context) {
	session, exists := c.Get("session")
	if !exists {
		c.JSON(401, gin.H{"error": "Not authenticated"})
		return
	}

	sess := session.(*models.Session)
	if err := h.sessions.InvalidateSession(c.Request.Context(), sess.ID, models.LogoutReasonManual); err != nil {
		c.JSON(500, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(200, gin.H{"message": "Logged out successfully"})
}

// LogoutAll terminates every active session of one user (admin action)
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	count, err := h.sessions.InvalidateAllSessions(c.Request.Context(), id, models.LogoutReasonForced)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to terminate sessions"})
		return
	}

	c.JSON(200, gin.H{"message": "Sessions terminated", "count": count})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(401, gin.H{"error": "Not authenticated"})
		return
	}

	u := user.(*models.User)
	u.PasswordHash = ""
	c.JSON(200, u)
}

// GetSessions returns the caller's active sessions, most recent activity first
func (h *AuthHandler) GetSessions(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(401, gin.H{"error": "Not authenticated"})
		return
	}

	sessions, err := h.sessions.ListActiveSessions(c.Request.Context(), userID.(uint))
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to list sessions"})
		return
	}

	c.JSON(200, gin.H{"sessions": sessions})
}
