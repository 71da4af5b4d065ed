package http

import (
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

// Context keys
const (
	sessionKey = "session"
	memberKey  = "member"
)

// SecurityToken request fields
const (
	SecurityTokenField  = "SecurityID"
	SecurityTokenHeader = "X-SecurityID"
)

// CookieConfig controls the session cookie.
// The cookie and its token expire TTL after they are issued, at session start or login.
// Later requests do not extend them, so TTL caps a session even while the store keeps
// sliding its own expiry on writes.
type CookieConfig struct {
	Name   string
	TTL    time.Duration // zero means a browser session cookie
	Secure bool
}

// DefaultCookieName is the name of the session cookie
const DefaultCookieName = "sudomode_session"

// RequestLogger logs every request once it has been served
func RequestLogger(logger watermill.LoggerAdapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("Request served", watermill.LogFields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
	}
}

// SessionMiddleware resolves the session from the session cookie, starting a new one when
// the cookie is missing, invalid or points to an expired session
func SessionMiddleware(sessions ports.SessionStore, tokenizer ports.SessionTokenizer, cookie CookieConfig, logger watermill.LoggerAdapter) gin.HandlerFunc {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if raw, err := c.Cookie(cookie.Name); err == nil && raw != "" {
			id, err := tokenizer.TokenToSession(raw)
			if err == nil {
				session, err := sessions.Load(ctx, id)
				switch {
				case err == nil:
					c.Set(sessionKey, session)
					c.Next()
					return
				case !errors.Is(err, core.ErrSessionNotFound):
					logger.Error("Failed to load session", err, watermill.LogFields{"session_id": id})
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
					return
				}
			} else {
				logger.Debug("Discarding session cookie", watermill.LogFields{"error": err.Error()})
			}
		}

		session, err := sessions.Create(ctx)
		if err != nil {
			logger.Error("Failed to create session", err, nil)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		if err := issueCookie(c, tokenizer, cookie, session); err != nil {
			logger.Error("Failed to sign session cookie", err, nil)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

// issueCookie signs the session ID into the session cookie
func issueCookie(c *gin.Context, tokenizer ports.SessionTokenizer, cookie CookieConfig, session ports.Session) error {
	var expiresAt time.Time
	if cookie.TTL > 0 {
		expiresAt = time.Now().Add(cookie.TTL)
	}
	token, err := tokenizer.SessionToToken(session.ID(), expiresAt)
	if err != nil {
		return err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, token, int(cookie.TTL.Seconds()), "/", "", cookie.Secure, true)
	return nil
}

// RequireMember aborts with 401 unless a member is logged in to the session
func RequireMember(auth *service.AuthService, tr *i18n.Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		member, err := auth.CurrentMember(c.Request.Context(), sessionFrom(c))
		if err != nil {
			if errors.Is(err, core.ErrNotAuthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": tr.T(i18n.LoginRequired, lang(c))})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": tr.T(i18n.InternalError, lang(c))})
			return
		}

		c.Set(memberKey, member)
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the logged in member is an administrator
func RequireAdmin(tr *i18n.Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		member := memberFrom(c)
		if member == nil || !member.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": tr.T(i18n.MemberForbidden, lang(c))})
			return
		}
		c.Next()
	}
}

// RequireSudoMode aborts with 403 unless sudo mode is active for the session
func RequireSudoMode(sudo ports.SudoModeAuthorizer, tr *i18n.Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, err := sudo.Check(c.Request.Context(), sessionFrom(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": tr.T(i18n.InternalError, lang(c))})
			return
		}
		if !active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "sudo_mode_required",
				"message": tr.T(i18n.SudoModeRequired, lang(c)),
			})
			return
		}
		c.Next()
	}
}

// RequireSecurityToken aborts with 403 unless the request carries the session's security token
func RequireSecurityToken(tokens *service.SecurityTokenService, tr *i18n.Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := tokens.Check(c.Request.Context(), sessionFrom(c), submittedToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": tr.T(i18n.InternalError, lang(c))})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": tr.T(i18n.SudoModeTimeout, lang(c))})
			return
		}
		c.Next()
	}
}

func submittedToken(c *gin.Context) string {
	if token := c.GetHeader(SecurityTokenHeader); token != "" {
		return token
	}
	return c.PostForm(SecurityTokenField)
}

func sessionFrom(c *gin.Context) ports.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(ports.Session); ok {
			return s
		}
	}
	return nil
}

func memberFrom(c *gin.Context) *core.Member {
	if v, ok := c.Get(memberKey); ok {
		if m, ok := v.(*core.Member); ok {
			return m
		}
	}
	return nil
}

func lang(c *gin.Context) string {
	return c.GetHeader("Accept-Language")
}
