package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/security"
	"github.com/AfterPacket/secure-blog-cms/internal/storage"
	"github.com/AfterPacket/secure-blog-cms/internal/util"
)

// BackupHandler serves snapshot creation, listing and restore.
type BackupHandler struct {
	Store *storage.PostStore
	Guard *security.SessionGuard
	Csrf  *security.CsrfGuard
}

func NewBackupHandler(store *storage.PostStore, guard *security.SessionGuard, csrf *security.CsrfGuard) *BackupHandler {
	return &BackupHandler{Store: store, Guard: guard, Csrf: csrf}
}

// Create takes a manual snapshot of the whole post set.
func (h *BackupHandler) Create(c *gin.Context) {
	if !verifyCsrf(c, h.Guard, h.Csrf, "backup_form") {
		return
	}
	if err := h.Store.Backup("manual", ""); err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "Backup created"})
}

// List returns the snapshots on disk, newest first.
func (h *BackupHandler) List(c *gin.Context) {
	backups, err := h.Store.Backups()
	if err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"backups": backups})
}

type restoreReq struct {
	Filename string `json:"filename" binding:"required"`
	Confirm  bool   `json:"confirm"`
}

// Restore replaces every post with the named snapshot. The operation is
// destructive, so the request must carry an explicit confirmation flag.
func (h *BackupHandler) Restore(c *gin.Context) {
	if !verifyCsrf(c, h.Guard, h.Csrf, "backup_form") {
		return
	}

	var req restoreReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Backup filename is required")
		return
	}
	if !req.Confirm {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			"Restoring replaces all current posts; set confirm to proceed")
		return
	}

	if err := h.Store.Restore(req.Filename); err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "Backup restored"})
}
