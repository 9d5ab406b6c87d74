package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/middleware"
	"github.com/AfterPacket/secure-blog-cms/internal/models"
	"github.com/AfterPacket/secure-blog-cms/internal/sanitize"
	"github.com/AfterPacket/secure-blog-cms/internal/security"
	"github.com/AfterPacket/secure-blog-cms/internal/storage"
	"github.com/AfterPacket/secure-blog-cms/internal/util"
)

// PostsHandler serves the post CRUD, listing, search and statistics
// endpoints.
type PostsHandler struct {
	Store   *storage.PostStore
	Guard   *security.SessionGuard
	Csrf    *security.CsrfGuard
	San     *sanitize.Sanitizer
	Vault   *security.PasswordVault
	PerPage int
}

func NewPostsHandler(
	store *storage.PostStore,
	guard *security.SessionGuard,
	csrf *security.CsrfGuard,
	san *sanitize.Sanitizer,
	vault *security.PasswordVault,
	perPage int,
) *PostsHandler {
	if perPage <= 0 {
		perPage = 10
	}
	return &PostsHandler{
		Store:   store,
		Guard:   guard,
		Csrf:    csrf,
		San:     san,
		Vault:   vault,
		PerPage: perPage,
	}
}

// storageError maps storage failures onto the response envelope. I/O
// details never reach the client.
func storageError(c *gin.Context, err error) {
	var verr *storage.ValidationError
	switch {
	case errors.As(err, &verr):
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, verr.Message)
	case errors.Is(err, storage.ErrNotFound):
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "Not found")
	default:
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An error occurred")
	}
}

// verifyCsrf checks the request token for the given form scope and
// persists the session, since verification consumes non-upload tokens.
func verifyCsrf(c *gin.Context, guard *security.SessionGuard, csrf *security.CsrfGuard, form string) bool {
	sess := middleware.CurrentSession(c)
	token := c.GetHeader("X-CSRF-Token")
	if token == "" {
		token = c.Query("csrf_token")
	}
	err := csrf.Verify(sess, token, form)
	_ = guard.Save(sess)
	if err != nil {
		util.Error(c, http.StatusForbidden, util.CodeCSRF, "Invalid security token. Please refresh and try again")
		return false
	}
	return true
}

// List returns one page of posts. Unauthenticated callers only ever see
// published posts regardless of the status filter they request.
func (h *PostsHandler) List(c *gin.Context) {
	status := h.San.Sanitize(c.DefaultQuery("status", "published"), sanitize.TypeAlphanumeric)
	if !h.authenticated(c) {
		status = models.StatusPublished
	}

	page := h.San.Int(c.DefaultQuery("page", "1"))
	posts, pagination, err := h.Store.Paginate(page, h.PerPage, status)
	if err != nil {
		storageError(c, err)
		return
	}

	util.Success(c, util.Response{
		"posts":      redactAll(posts),
		"pagination": pagination,
	})
}

// Search matches the query against title, content, excerpt and keywords.
func (h *PostsHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Search query is required")
		return
	}

	status := models.StatusPublished
	if h.authenticated(c) {
		status = h.San.Sanitize(c.DefaultQuery("status", "all"), sanitize.TypeAlphanumeric)
	}

	posts, err := h.Store.Search(query, status)
	if err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"posts": redactAll(posts)})
}

// Get loads a post by id. Reserved for the admin surface, so drafts and
// private posts are visible and views are never counted.
func (h *PostsHandler) Get(c *gin.Context) {
	post, err := h.Store.GetByID(c.Param("id"))
	if err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"post": redact(*post)})
}

// GetBySlug is the public read path: published public posts only, view
// counter incremented for anonymous readers, post passwords enforced.
func (h *PostsHandler) GetBySlug(c *gin.Context) {
	authenticated := h.authenticated(c)

	post, err := h.Store.GetBySlug(c.Param("slug"))
	if err != nil {
		storageError(c, err)
		return
	}

	if !authenticated {
		if post.Status != models.StatusPublished || post.Visibility != models.VisibilityPublic {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "Not found")
			return
		}
		if post.PasswordProtected {
			supplied := c.Query("password")
			if supplied == "" || !h.Vault.Verify(supplied, post.PostPassword) {
				util.Error(c, http.StatusForbidden, util.CodeAuth, "This post is password protected")
				return
			}
		}
		// The read is granted; only now does it count.
		if post, err = h.Store.View(post.ID, false); err != nil {
			storageError(c, err)
			return
		}
	}

	util.Success(c, util.Response{"post": redact(*post)})
}

// Create makes a new post authored by the session user.
func (h *PostsHandler) Create(c *gin.Context) {
	if !verifyCsrf(c, h.Guard, h.Csrf, "post_form") {
		return
	}

	var input models.PostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Invalid request body")
		return
	}

	sess := middleware.CurrentSession(c)
	post, err := h.Store.Create(input, sess.User)
	if err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"post": redact(*post)})
}

// Update merges the provided fields into an existing post.
func (h *PostsHandler) Update(c *gin.Context) {
	if !verifyCsrf(c, h.Guard, h.Csrf, "post_form") {
		return
	}

	var input models.PostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Invalid request body")
		return
	}

	post, err := h.Store.Update(c.Param("id"), input)
	if err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"post": redact(*post)})
}

// Delete removes a post.
func (h *PostsHandler) Delete(c *gin.Context) {
	if !verifyCsrf(c, h.Guard, h.Csrf, "post_form") {
		return
	}
	if err := h.Store.Delete(c.Param("id")); err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "Post deleted"})
}

// Statistics aggregates counters over the whole post set.
func (h *PostsHandler) Statistics(c *gin.Context) {
	stats, err := h.Store.Statistics()
	if err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"statistics": stats})
}

func (h *PostsHandler) authenticated(c *gin.Context) bool {
	return h.Guard.IsAuthenticated(middleware.CurrentSession(c), middleware.CurrentFingerprint(c))
}

// redact strips the stored password hash before a post leaves the API.
func redact(post models.Post) models.Post {
	post.PostPassword = ""
	return post
}

func redactAll(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		out[i] = redact(p)
	}
	return out
}
