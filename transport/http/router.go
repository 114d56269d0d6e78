package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/service"
)

// SetupRouter sets up the Gin router.
func SetupRouter(
	authService *service.AuthService,
	fileService *service.FileService,
	grantService *service.GrantService,
	log *zap.Logger,
	baseURL string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	auth := NewAuthHandlers(authService)
	files := NewFileHandlers(fileService, grantService, log, baseURL)

	router.GET("/health", Health)
	router.GET("/verify-email", auth.VerifyEmail)

	ops := router.Group("/ops")
	{
		ops.POST("/login", auth.OpsLogin)
		upload := ops.Group("")
		upload.Use(AuthMiddleware(authService), RequireUserType(core.UserTypeOps))
		upload.POST("/upload", files.Upload)
	}

	client := router.Group("/client")
	{
		client.POST("/signup", auth.Signup)
		client.POST("/login", auth.ClientLogin)

		protected := client.Group("")
		protected.Use(AuthMiddleware(authService), RequireUserType(core.UserTypeClient))
		protected.GET("/files", files.List)
		protected.GET("/download-file/:id", files.DownloadLink)
	}

	// Redemption needs an authenticated subject for the transfer-binding
	// check, but either user class may present a token; the grant itself
	// decides who it was issued to.
	download := router.Group("/download-file")
	download.Use(AuthMiddleware(authService))
	download.GET("/:token", files.Download)

	return router
}
