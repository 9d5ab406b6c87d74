package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/security"
	"github.com/AfterPacket/secure-blog-cms/internal/storage"
	"github.com/AfterPacket/secure-blog-cms/internal/util"
)

// TaxonomyHandler serves the category/tag registry and the per-term post
// listings.
type TaxonomyHandler struct {
	Taxonomy *storage.TaxonomyStore
	Posts    *storage.PostStore
	Guard    *security.SessionGuard
	Csrf     *security.CsrfGuard
}

func NewTaxonomyHandler(taxonomy *storage.TaxonomyStore, posts *storage.PostStore, guard *security.SessionGuard, csrf *security.CsrfGuard) *TaxonomyHandler {
	return &TaxonomyHandler{Taxonomy: taxonomy, Posts: posts, Guard: guard, Csrf: csrf}
}

// List returns the whole registry.
func (h *TaxonomyHandler) List(c *gin.Context) {
	util.Success(c, util.Response{
		"categories": h.Taxonomy.Categories(),
		"tags":       h.Taxonomy.Tags(),
	})
}

type termReq struct {
	Name string `json:"name" binding:"required"`
}

// AddCategory registers a new category.
func (h *TaxonomyHandler) AddCategory(c *gin.Context) {
	if !verifyCsrf(c, h.Guard, h.Csrf, "taxonomy_form") {
		return
	}

	var req termReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Name is required")
		return
	}
	if err := h.Taxonomy.AddCategory(req.Name); err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"categories": h.Taxonomy.Categories()})
}

// AddTag registers a new tag.
func (h *TaxonomyHandler) AddTag(c *gin.Context) {
	if !verifyCsrf(c, h.Guard, h.Csrf, "taxonomy_form") {
		return
	}

	var req termReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Name is required")
		return
	}
	if err := h.Taxonomy.AddTag(req.Name); err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"tags": h.Taxonomy.Tags()})
}

// PostsByCategory lists published posts in the category slug.
func (h *TaxonomyHandler) PostsByCategory(c *gin.Context) {
	posts, err := h.Posts.ByCategory(c.Param("slug"))
	if err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"posts": redactAll(posts)})
}

// PostsByTag lists published posts carrying the tag slug.
func (h *TaxonomyHandler) PostsByTag(c *gin.Context) {
	posts, err := h.Posts.ByTag(c.Param("slug"))
	if err != nil {
		storageError(c, err)
		return
	}
	util.Success(c, util.Response{"posts": redactAll(posts)})
}
