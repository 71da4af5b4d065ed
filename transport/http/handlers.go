package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/internal/i18n"
	"github.com/layer-3/sudomode/ports"
	"github.com/layer-3/sudomode/service"
)

// ActivatePath is the re-verification endpoint advertised to clients
const ActivatePath = "/sudomode/activate"

// SudoModeHandlers contains HTTP handlers for sudo mode endpoints
type SudoModeHandlers struct {
	sudo     ports.SudoModeAuthorizer
	auth     *service.AuthService
	tokens   *service.SecurityTokenService
	tr       *i18n.Translator
	helpLink string
}

// NewSudoModeHandlers creates new sudo mode handlers
func NewSudoModeHandlers(sudo ports.SudoModeAuthorizer, auth *service.AuthService, tokens *service.SecurityTokenService, tr *i18n.Translator, helpLink string) *SudoModeHandlers {
	return &SudoModeHandlers{
		sudo:     sudo,
		auth:     auth,
		tokens:   tokens,
		tr:       tr,
		helpLink: helpLink,
	}
}

// Check reports whether sudo mode is active for the current session
func (h *SudoModeHandlers) Check(c *gin.Context) {
	active, err := h.sudo.Check(c.Request.Context(), sessionFrom(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.tr.T(i18n.InternalError, lang(c))})
		return
	}

	c.JSON(http.StatusOK, gin.H{"active": active})
}

// Activate verifies the submitted password against the current member and activates sudo mode
func (h *SudoModeHandlers) Activate(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Status(http.StatusNotFound)
		return
	}

	ctx := c.Request.Context()
	session := sessionFrom(c)

	valid, err := h.tokens.Check(ctx, session, submittedToken(c))
	if err != nil {
		h.activateError(c)
		return
	}
	if !valid {
		c.JSON(http.StatusForbidden, gin.H{
			"result":  false,
			"message": h.tr.T(i18n.SudoModeTimeout, lang(c)),
		})
		return
	}

	if err := h.auth.VerifyPassword(ctx, memberFrom(c), c.PostForm("Password")); err != nil {
		if !errors.Is(err, core.ErrInvalidCredentials) {
			h.activateError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"result":  false,
			"message": h.tr.T(i18n.SudoModeInvalid, lang(c)),
		})
		return
	}

	if _, err := h.sudo.Activate(ctx, session); err != nil {
		h.activateError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": true})
}

func (h *SudoModeHandlers) activateError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"result":  false,
		"message": h.tr.T(i18n.SudoModeError, lang(c)),
	})
}

// ClientConfig returns what a client needs to prompt for re-verification
func (h *SudoModeHandlers) ClientConfig(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessionFrom(c)

	active, err := h.sudo.Check(ctx, session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.tr.T(i18n.InternalError, lang(c))})
		return
	}

	token, err := h.tokens.Token(ctx, session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.tr.T(i18n.InternalError, lang(c))})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"endpoints": gin.H{
			"activate": ActivatePath,
		},
		"sudoModeActive":   active,
		"helpLink":         h.helpLink,
		SecurityTokenField: token,
	})
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	auth      *service.AuthService
	sessions  ports.SessionStore
	tokenizer ports.SessionTokenizer
	cookie    CookieConfig
	tr        *i18n.Translator
	logger    watermill.LoggerAdapter
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(auth *service.AuthService, sessions ports.SessionStore, tokenizer ports.SessionTokenizer, cookie CookieConfig, tr *i18n.Translator, logger watermill.LoggerAdapter) *AuthHandlers {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &AuthHandlers{
		auth:      auth,
		sessions:  sessions,
		tokenizer: tokenizer,
		cookie:    cookie,
		tr:        tr,
		logger:    logger,
	}
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.tr.T(i18n.BadRequest, lang(c))})
		return
	}

	ctx := c.Request.Context()

	// login always starts a fresh session, the pre-login one is destroyed
	previous := sessionFrom(c)
	session, err := h.sessions.Create(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.tr.T(i18n.InternalError, lang(c))})
		return
	}

	member, err := h.auth.Login(ctx, session, req.Email, req.Password)
	if err != nil {
		h.destroy(ctx, session)
		if errors.Is(err, core.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": h.tr.T(i18n.InvalidLogin, lang(c))})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.tr.T(i18n.InternalError, lang(c))})
		return
	}

	if err := issueCookie(c, h.tokenizer, h.cookie, session); err != nil {
		h.logger.Error("Failed to sign session cookie", err, watermill.LogFields{"session_id": session.ID()})
		h.destroy(ctx, session)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.tr.T(i18n.InternalError, lang(c))})
		return
	}
	if previous != nil {
		h.destroy(ctx, previous)
	}
	c.Set(sessionKey, session)

	c.JSON(http.StatusOK, gin.H{
		"member":                   newMemberView(member),
		"password_change_required": h.auth.PasswordChangeRequired(member),
	})
}

func (h *AuthHandlers) destroy(ctx context.Context, session ports.Session) {
	if err := h.sessions.Destroy(ctx, session.ID()); err != nil {
		h.logger.Error("Failed to destroy session", err, watermill.LogFields{"session_id": session.ID()})
	}
}

// Logout destroys the session and clears the session cookie
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), h.sessions, sessionFrom(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.tr.T(i18n.InternalError, lang(c))})
		return
	}

	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the logged in member
func (h *AuthHandlers) Me(c *gin.Context) {
	member := memberFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"member":                   newMemberView(member),
		"password_change_required": h.auth.PasswordChangeRequired(member),
	})
}

// MemberHandlers contains HTTP handlers for member administration
type MemberHandlers struct {
	members *service.MemberService
	tr      *i18n.Translator
}

// NewMemberHandlers creates new member handlers
func NewMemberHandlers(members *service.MemberService, tr *i18n.Translator) *MemberHandlers {
	return &MemberHandlers{members: members, tr: tr}
}

// Get returns a member profile
func (h *MemberHandlers) Get(c *gin.Context) {
	member, err := h.members.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"member":                   newMemberView(member),
		"password_change_required": h.members.RequiresPasswordChangeOnNextLogin(member),
		"can_require_change":       h.members.CanRequirePasswordChange(memberFrom(c), member),
	})
}

// SetPasswordExpiry sets or clears "requires password change on next login"
func (h *MemberHandlers) SetPasswordExpiry(c *gin.Context) {
	var req struct {
		Required *bool `json:"required" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.tr.T(i18n.BadRequest, lang(c))})
		return
	}

	member, err := h.members.SetRequiresPasswordChangeOnNextLogin(c.Request.Context(), memberFrom(c), c.Param("id"), *req.Required)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"member":                   newMemberView(member),
		"password_change_required": h.members.RequiresPasswordChangeOnNextLogin(member),
	})
}

func (h *MemberHandlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": h.tr.T(i18n.MemberNotFound, lang(c))})
	case errors.Is(err, core.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": h.tr.T(i18n.MemberForbidden, lang(c))})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.tr.T(i18n.InternalError, lang(c))})
	}
}

type memberView struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name,omitempty"`
	Surname        string     `json:"surname,omitempty"`
	Admin          bool       `json:"admin"`
	PasswordExpiry *time.Time `json:"password_expiry"`
}

func newMemberView(m *core.Member) memberView {
	return memberView{
		ID:             m.ID,
		Email:          m.Email,
		FirstName:      m.FirstName,
		Surname:        m.Surname,
		Admin:          m.Admin,
		PasswordExpiry: m.PasswordExpiry,
	}
}
