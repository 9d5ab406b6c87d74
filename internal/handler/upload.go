package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/security"
	"github.com/AfterPacket/secure-blog-cms/internal/upload"
	"github.com/AfterPacket/secure-blog-cms/internal/util"
)

// UploadHandler serves image upload, listing, serving and deletion.
type UploadHandler struct {
	Uploads     *upload.UploadGuard
	Guard       *security.SessionGuard
	Csrf        *security.CsrfGuard
	Limiter     *security.RateLimiter
	UploadDir   string
	MaxAttempts int
	Window      time.Duration
}

func NewUploadHandler(
	uploads *upload.UploadGuard,
	guard *security.SessionGuard,
	csrf *security.CsrfGuard,
	limiter *security.RateLimiter,
	uploadDir string,
	maxAttempts int,
	window time.Duration,
) *UploadHandler {
	return &UploadHandler{
		Uploads:     uploads,
		Guard:       guard,
		Csrf:        csrf,
		Limiter:     limiter,
		UploadDir:   uploadDir,
		MaxAttempts: maxAttempts,
		Window:      window,
	}
}

// Upload validates and stores one multipart image. The CSRF token uses
// the reusable upload scope, so one page can perform several uploads
// with a single token.
func (h *UploadHandler) Upload(c *gin.Context) {
	ip := c.ClientIP()
	ua := c.Request.UserAgent()

	if !h.Limiter.AllowRequest("upload_"+ip, h.MaxAttempts, h.Window, ip, ua) {
		util.Error(c, http.StatusTooManyRequests, util.CodeRateLimited, "Too many uploads. Please try again later")
		return
	}
	if !verifyCsrf(c, h.Guard, h.Csrf, security.UploadForm) {
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No file was uploaded"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid file upload"})
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid file upload"})
		return
	}

	result, err := h.Uploads.HandleUpload(file.Filename, content, ip, ua)
	if err != nil {
		var sv *upload.SecurityViolation
		switch {
		case errors.As(err, &sv):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": sv.Error()})
		case errors.Is(err, upload.ErrEmptyFile) || errors.Is(err, upload.ErrTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "An error occurred"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"filename":   result.Filename,
		"url":        result.URL,
		"path":       result.Path,
		"size":       result.Size,
		"dimensions": result.Dimensions,
	})
}

// List returns stored images newest first.
func (h *UploadHandler) List(c *gin.Context) {
	limit := 50
	offset := 0
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = n
	}
	if n, err := strconv.Atoi(c.Query("offset")); err == nil && n > 0 {
		offset = n
	}

	images, err := h.Uploads.List(limit, offset)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An error occurred")
		return
	}
	count, err := h.Uploads.Count()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An error occurred")
		return
	}

	util.Success(c, util.Response{"images": images, "total": count})
}

// Serve streams one stored image. Only base filenames inside the upload
// directory can be reached.
func (h *UploadHandler) Serve(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	info, err := h.Uploads.Info(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "Not found")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An error occurred")
		return
	}
	c.File(filepath.Join(h.UploadDir, info.Filename))
}

// Delete removes one stored image.
func (h *UploadHandler) Delete(c *gin.Context) {
	if !verifyCsrf(c, h.Guard, h.Csrf, security.UploadForm) {
		return
	}

	err := h.Uploads.Delete(c.Param("filename"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "File not found")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An error occurred")
		return
	}
	util.Success(c, util.Response{"message": "Image deleted successfully"})
}
