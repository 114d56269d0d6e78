package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/service"
)

// deniedMessage is the single body every failed download redemption gets.
// The specific failure kind is logged server-side only; externally the
// outcome is binary.
const deniedMessage = "download link is invalid, expired or already used"

// AuthHandlers contains HTTP handlers for signup, verification and login.
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{authService: authService}
}

// Signup handles client registration.
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.authService.SignupClient(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username or email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "account created, please check your email for verification",
		"user_id": user.ID,
	})
}

// VerifyEmail handles the verification link from the signup email.
func (h *AuthHandlers) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing verification token"})
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired verification token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "email verified, you can now log in"})
}

// OpsLogin handles the operations-user login.
func (h *AuthHandlers) OpsLogin(c *gin.Context) {
	h.login(c, core.UserTypeOps)
}

// ClientLogin handles the client-user login.
func (h *AuthHandlers) ClientLogin(c *gin.Context) {
	h.login(c, core.UserTypeClient)
}

func (h *AuthHandlers) login(c *gin.Context, want core.UserType) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password, want)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username or password"})
		case errors.Is(err, core.ErrWrongUserType):
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied for this user type"})
		case errors.Is(err, core.ErrUserNotVerified):
			c.JSON(http.StatusForbidden, gin.H{"error": "please verify your email before logging in"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
	})
}

// FileHandlers contains HTTP handlers for uploads, listing and the
// grant-protected download flow.
type FileHandlers struct {
	fileService  *service.FileService
	grantService *service.GrantService
	log          *zap.Logger
	baseURL      string
}

// NewFileHandlers creates new file handlers.
func NewFileHandlers(fileService *service.FileService, grantService *service.GrantService, log *zap.Logger, baseURL string) *FileHandlers {
	return &FileHandlers{
		fileService:  fileService,
		grantService: grantService,
		log:          log,
		baseURL:      baseURL,
	}
}

// Upload handles multipart file uploads from ops users.
func (h *FileHandlers) Upload(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	meta, err := h.fileService.Upload(c.Request.Context(), user, fileHeader.Filename, fileHeader.Size, f)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the maximum allowed size"})
		case errors.Is(err, core.ErrFileTypeNotAllowed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file type not allowed"})
		case errors.Is(err, core.ErrWrongUserType):
			c.JSON(http.StatusForbidden, gin.H{"error": "only operations users can upload"})
		default:
			h.log.Error("upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		}
		return
	}

	c.JSON(http.StatusCreated, fileResponse(meta))
}

// List handles the file listing for verified clients.
func (h *FileHandlers) List(c *gin.Context) {
	files, err := h.fileService.List(c.Request.Context())
	if err != nil {
		h.log.Error("listing files failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}

	out := make([]gin.H, 0, len(files))
	for _, meta := range files {
		out = append(out, fileResponse(meta))
	}
	c.JSON(http.StatusOK, out)
}

// DownloadLink issues a download grant for the requesting client and
// returns the URL embedding the sealed token.
func (h *FileHandlers) DownloadLink(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID := c.Param("id")
	if _, err := h.fileService.Get(c.Request.Context(), fileID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	token, err := h.grantService.Issue(c.Request.Context(), user.ID, fileID)
	if err != nil {
		if errors.Is(err, core.ErrNotAuthorized) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for this file"})
			return
		}
		h.log.Error("issuing grant failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create download link"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"download_link": fmt.Sprintf("%s/download-file/%s", h.baseURL, token),
		"message":       "success",
	})
}

// Download redeems a sealed token and streams the released file. Every
// redemption failure collapses to the same 403 body.
func (h *FileHandlers) Download(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	handle, err := h.grantService.Redeem(c.Request.Context(), c.Param("token"), user.ID)
	if err != nil {
		h.log.Info("download denied",
			zap.String("subject", user.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusForbidden, gin.H{"error": deniedMessage})
		return
	}

	meta, r, err := h.fileService.Content(c.Request.Context(), handle)
	if err != nil {
		h.log.Error("reading released file failed",
			zap.String("resource", handle.ResourceID),
			zap.Error(err),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found on server"})
		return
	}
	defer r.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.OriginalName))
	c.DataFromReader(http.StatusOK, meta.Size, meta.ContentType, r, nil)
}

// Health reports service liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func fileResponse(meta *core.FileMeta) gin.H {
	return gin.H{
		"id":                meta.ID,
		"filename":          meta.Name,
		"original_filename": meta.OriginalName,
		"file_size":         meta.Size,
		"file_type":         meta.ContentType,
		"uploaded_at":       meta.UploadedAt,
	}
}
