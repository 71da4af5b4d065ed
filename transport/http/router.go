package http

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/sudomode/internal/i18n"
	"github.com/layer-3/sudomode/ports"
	"github.com/layer-3/sudomode/service"
)

// Dependencies holds everything the router serves
type Dependencies struct {
	Sessions      ports.SessionStore
	Tokenizer     ports.SessionTokenizer
	Auth          *service.AuthService
	SudoMode      ports.SudoModeAuthorizer
	Members       *service.MemberService
	SecurityToken *service.SecurityTokenService
	Translator    *i18n.Translator
	Cookie        CookieConfig
	HelpLink      string
	Logger        watermill.LoggerAdapter
}

// SetupRouter sets up the Gin router
func SetupRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = watermill.NopLogger{}
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(deps.Logger))
	router.Use(SessionMiddleware(deps.Sessions, deps.Tokenizer, deps.Cookie, deps.Logger))

	tr := deps.Translator
	requireMember := RequireMember(deps.Auth, tr)

	// Create handlers
	sudoHandlers := NewSudoModeHandlers(deps.SudoMode, deps.Auth, deps.SecurityToken, tr, deps.HelpLink)
	authHandlers := NewAuthHandlers(deps.Auth, deps.Sessions, deps.Tokenizer, deps.Cookie, tr, deps.Logger)
	memberHandlers := NewMemberHandlers(deps.Members, tr)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/login", authHandlers.Login)
		auth.POST("/logout", authHandlers.Logout)
		auth.GET("/me", requireMember, authHandlers.Me)
	}

	// Sudo mode routes
	sudo := router.Group("/sudomode")
	sudo.Use(requireMember)
	{
		sudo.GET("/check", sudoHandlers.Check)
		sudo.GET("/config", sudoHandlers.ClientConfig)
		sudo.Any("/activate", sudoHandlers.Activate)
	}

	// Member administration, privileged changes require sudo mode
	admin := router.Group("/admin")
	admin.Use(requireMember, RequireAdmin(tr))
	{
		admin.GET("/members/:id", memberHandlers.Get)
		admin.PUT("/members/:id/password-expiry",
			RequireSudoMode(deps.SudoMode, tr),
			RequireSecurityToken(deps.SecurityToken, tr),
			memberHandlers.SetPasswordExpiry,
		)
	}

	return router
}
