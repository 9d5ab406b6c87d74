package storage

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
	"github.com/AfterPacket/secure-blog-cms/internal/sanitize"
	"github.com/AfterPacket/secure-blog-cms/internal/security"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Options configures a PostStore.
type Options struct {
	DataDir          string
	Sanitizer        *sanitize.Sanitizer
	Vault            *security.PasswordVault
	Taxonomy         *TaxonomyStore
	Log              *security.EventLog
	MaxTitleLength   int
	MaxContentLength int
	MaxExcerptLength int
	AutoBackup       bool
	MaxBackups       int
}

// PostStore persists posts as one JSON file each under data/posts, with a
// lightweight index in data/post_index.json for listings.
//
// There is no cross-process locking. Concurrent writers to the same post
// (or its view counter) race and the last write wins; that weak
// consistency is a documented property of the flat-file design, not a
// bug to fix here.
type PostStore struct {
	dataDir    string
	postsDir   string
	backupDir  string
	san        *sanitize.Sanitizer
	vault      *security.PasswordVault
	taxonomy   *TaxonomyStore
	log        *security.EventLog
	maxTitle   int
	maxContent int
	maxExcerpt int
	autoBackup bool
	maxBackups int
}

func NewPostStore(opts Options) *PostStore {
	return &PostStore{
		dataDir:    opts.DataDir,
		postsDir:   filepath.Join(opts.DataDir, "posts"),
		backupDir:  filepath.Join(opts.DataDir, "backups"),
		san:        opts.Sanitizer,
		vault:      opts.Vault,
		taxonomy:   opts.Taxonomy,
		log:        opts.Log,
		maxTitle:   opts.MaxTitleLength,
		maxContent: opts.MaxContentLength,
		maxExcerpt: opts.MaxExcerptLength,
		autoBackup: opts.AutoBackup,
		maxBackups: opts.MaxBackups,
	}
}

// generateID builds a time-seeded id with a random suffix. Collisions are
// not checked; the id space makes them vanishingly unlikely and existing
// data relies on this exact shape.
func generateID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%d_%s", time.Now().Unix(), hex.EncodeToString(buf))
}

// Create sanitizes, validates and persists a new post. The returned post
// carries the generated id, slug and excerpt.
func (s *PostStore) Create(in models.PostInput, author string) (*models.Post, error) {
	title := s.san.Sanitize(strVal(in.Title), sanitize.TypeString)
	content := s.san.Sanitize(strVal(in.Content), sanitize.TypeHTML)
	if title == "" || content == "" {
		return nil, &ValidationError{Message: "Title and content are required"}
	}

	now := time.Now().Unix()
	post := models.Post{
		ID:                generateID(),
		Title:             title,
		Content:           content,
		Excerpt:           s.san.Sanitize(strVal(in.Excerpt), sanitize.TypeString),
		Slug:              s.san.Sanitize(strVal(in.Slug), sanitize.TypeSlug),
		Author:            author,
		Status:            validStatus(strVal(in.Status), models.StatusDraft),
		CreatedAt:         now,
		UpdatedAt:         now,
		MetaDescription:   s.san.Sanitize(strVal(in.MetaDescription), sanitize.TypeString),
		MetaKeywords:      s.san.Sanitize(strVal(in.MetaKeywords), sanitize.TypeString),
		Visibility:        validVisibility(strVal(in.Visibility), models.VisibilityPublic),
		PasswordProtected: in.PasswordProtected != nil && *in.PasswordProtected,
		Categories:        s.cleanCategories(in.Categories, nil),
		Tags:              s.registerTags(strVal(in.Tags)),
	}

	if post.PasswordProtected {
		if strVal(in.PostPassword) == "" {
			return nil, &ValidationError{Message: "Password is required for protected posts"}
		}
		hash, err := s.vault.Hash(*in.PostPassword)
		if err != nil {
			return nil, &ValidationError{Message: "Password is required for protected posts"}
		}
		post.PostPassword = hash
	}

	if err := s.checkLengths(&post); err != nil {
		return nil, err
	}

	if post.Slug == "" {
		post.Slug = slugify(post.Title)
	}
	if post.Slug == "" {
		// Title made of symbols only; a slug must still be non-empty.
		post.Slug = "post"
	}
	var err error
	post.Slug, err = s.ensureUniqueSlug(post.Slug, "")
	if err != nil {
		return nil, err
	}

	if post.Excerpt == "" {
		post.Excerpt = generateExcerpt(s.san.Sanitize(post.Content, sanitize.TypeString), s.maxExcerpt)
	}

	if err := s.writePost(&post); err != nil {
		return nil, err
	}
	s.updateIndex()

	if s.autoBackup {
		_ = s.Backup("post_created", post.ID)
	}
	s.log.Record("Post created", post.ID, "", "")

	return &post, nil
}

// Update merges the provided fields into the stored post; absent fields
// keep their previous values. The slug is re-checked for uniqueness only
// when it actually changes.
func (s *PostStore) Update(id string, in models.PostInput) (*models.Post, error) {
	id = s.san.Sanitize(id, sanitize.TypeAlphanumeric)

	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	post := *existing
	post.Title = s.san.Sanitize(pick(in.Title, existing.Title), sanitize.TypeString)
	post.Content = s.san.Sanitize(pick(in.Content, existing.Content), sanitize.TypeHTML)
	post.Excerpt = s.san.Sanitize(pick(in.Excerpt, existing.Excerpt), sanitize.TypeString)
	post.Slug = s.san.Sanitize(pick(in.Slug, existing.Slug), sanitize.TypeSlug)
	post.Status = validStatus(pick(in.Status, existing.Status), models.StatusDraft)
	post.MetaDescription = s.san.Sanitize(pick(in.MetaDescription, existing.MetaDescription), sanitize.TypeString)
	post.MetaKeywords = s.san.Sanitize(pick(in.MetaKeywords, existing.MetaKeywords), sanitize.TypeString)
	post.Visibility = validVisibility(pick(in.Visibility, existing.Visibility), models.VisibilityPublic)
	post.PasswordProtected = in.PasswordProtected != nil && *in.PasswordProtected
	post.Categories = s.cleanCategories(in.Categories, existing.Categories)
	post.UpdatedAt = time.Now().Unix()

	if in.Tags != nil {
		post.Tags = s.registerTags(*in.Tags)
	}

	if post.PasswordProtected {
		// A new password replaces the old hash; otherwise keep it.
		if strVal(in.PostPassword) != "" {
			hash, err := s.vault.Hash(*in.PostPassword)
			if err != nil {
				return nil, &ValidationError{Message: "Password is required for protected posts"}
			}
			post.PostPassword = hash
		}
	} else {
		post.PostPassword = ""
	}

	if err := s.checkLengths(&post); err != nil {
		return nil, err
	}

	if post.Slug != existing.Slug {
		post.Slug, err = s.ensureUniqueSlug(post.Slug, id)
		if err != nil {
			return nil, err
		}
	}

	if err := s.writePost(&post); err != nil {
		return nil, err
	}
	s.updateIndex()

	if s.autoBackup {
		_ = s.Backup("post_updated", id)
	}
	s.log.Record("Post updated", id, "", "")

	return &post, nil
}

// Delete removes a post, taking a backup first when auto-backup is on.
func (s *PostStore) Delete(id string) error {
	id = s.san.Sanitize(id, sanitize.TypeAlphanumeric)
	path := s.postPath(id)

	if _, err := os.Stat(path); err != nil {
		return ErrNotFound
	}

	if s.autoBackup {
		_ = s.Backup("post_deleted", id)
	}

	if err := os.Remove(path); err != nil {
		return &StorageError{Op: "delete post", Err: err}
	}
	s.updateIndex()
	s.log.Record("Post deleted", id, "", "")
	return nil
}

// GetByID loads a post without touching its view counter.
func (s *PostStore) GetByID(id string) (*models.Post, error) {
	id = s.san.Sanitize(id, sanitize.TypeAlphanumeric)
	return s.readPost(s.postPath(id))
}

// View loads a post and increments its view counter unless the viewer is
// authenticated. The counter update is a plain read-modify-write on the
// post file; concurrent views can lose increments.
func (s *PostStore) View(id string, authenticated bool) (*models.Post, error) {
	post, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !authenticated {
		post.Views++
		_ = s.writePost(post)
	}
	return post, nil
}

// GetBySlug finds a post by its slug via a full scan.
func (s *PostStore) GetBySlug(slug string) (*models.Post, error) {
	slug = s.san.Sanitize(slug, sanitize.TypeSlug)
	posts, err := s.All("all", "created_at", "DESC")
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].Slug == slug {
			return &posts[i], nil
		}
	}
	return nil, ErrNotFound
}

// All scans every post file, filters by status ("all" disables the
// filter) and sorts in memory.
func (s *PostStore) All(status, orderBy, order string) ([]models.Post, error) {
	files, err := filepath.Glob(filepath.Join(s.postsDir, "*.json"))
	if err != nil {
		return nil, &StorageError{Op: "list posts", Err: err}
	}

	posts := make([]models.Post, 0, len(files))
	for _, path := range files {
		post, err := s.readPost(path)
		if err != nil {
			continue
		}
		if status != "all" && status != "" && post.Status != status {
			continue
		}
		posts = append(posts, *post)
	}

	sortPosts(posts, orderBy, order)
	return posts, nil
}

// Paginate returns one page of posts ordered newest first.
func (s *PostStore) Paginate(page, perPage int, status string) ([]models.Post, models.Pagination, error) {
	if perPage <= 0 {
		perPage = 10
	}
	all, err := s.All(status, "created_at", "DESC")
	if err != nil {
		return nil, models.Pagination{}, err
	}

	total := len(all)
	totalPages := (total + perPage - 1) / perPage
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return all[start:end], models.Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalPosts:  total,
		PerPage:     perPage,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}, nil
}

// Search matches the query case-insensitively against title, content,
// excerpt and meta keywords.
func (s *PostStore) Search(query, status string) ([]models.Post, error) {
	query = strings.ToLower(s.san.Sanitize(query, sanitize.TypeString))

	all, err := s.All(status, "created_at", "DESC")
	if err != nil {
		return nil, err
	}

	results := make([]models.Post, 0)
	for _, post := range all {
		haystack := strings.ToLower(post.Title + " " + post.Content + " " + post.Excerpt + " " + post.MetaKeywords)
		if strings.Contains(haystack, query) {
			results = append(results, post)
		}
	}
	return results, nil
}

// ByCategory lists published posts carrying the category slug.
func (s *PostStore) ByCategory(categorySlug string) ([]models.Post, error) {
	all, err := s.All(models.StatusPublished, "created_at", "DESC")
	if err != nil {
		return nil, err
	}
	results := make([]models.Post, 0)
	for _, post := range all {
		for _, c := range post.Categories {
			if c == categorySlug {
				results = append(results, post)
				break
			}
		}
	}
	return results, nil
}

// ByTag lists published posts whose tag list contains the tag slug.
func (s *PostStore) ByTag(tagSlug string) ([]models.Post, error) {
	all, err := s.All(models.StatusPublished, "created_at", "DESC")
	if err != nil {
		return nil, err
	}
	results := make([]models.Post, 0)
	for _, post := range all {
		for _, name := range splitTags(post.Tags) {
			if slugify(name) == tagSlug {
				results = append(results, post)
				break
			}
		}
	}
	return results, nil
}

// Statistics aggregates counters over the whole post set.
func (s *PostStore) Statistics() (models.Statistics, error) {
	all, err := s.All("all", "created_at", "DESC")
	if err != nil {
		return models.Statistics{}, err
	}

	stats := models.Statistics{TotalPosts: len(all)}
	for _, post := range all {
		if post.Status == models.StatusPublished {
			stats.PublishedPosts++
		} else {
			stats.DraftPosts++
		}
		stats.TotalViews += post.Views
	}
	return stats, nil
}

// ---- internals ----

func (s *PostStore) ensureUniqueSlug(slug, excludeID string) (string, error) {
	all, err := s.All("all", "created_at", "DESC")
	if err != nil {
		return "", err
	}

	taken := make(map[string]bool, len(all))
	for _, post := range all {
		if post.ID != excludeID {
			taken[post.Slug] = true
		}
	}

	candidate := slug
	for counter := 1; taken[candidate]; counter++ {
		candidate = fmt.Sprintf("%s-%d", slug, counter)
	}
	return candidate, nil
}

// generateExcerpt truncates plain text at a whitespace boundary and
// appends an ellipsis; the result never exceeds maxLen.
func generateExcerpt(text string, maxLen int) string {
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if maxLen <= 3 || len([]rune(text)) <= maxLen {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxLen-3])
	if idx := strings.LastIndexAny(cut, " \t"); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "..."
}

func (s *PostStore) checkLengths(post *models.Post) error {
	if len(post.Title) > s.maxTitle {
		return &ValidationError{Message: "Title too long"}
	}
	if len(post.Content) > s.maxContent {
		return &ValidationError{Message: "Content too long"}
	}
	return nil
}

func (s *PostStore) cleanCategories(in *[]string, fallback []string) []string {
	if in == nil {
		if fallback == nil {
			return []string{}
		}
		return fallback
	}
	out := make([]string, 0, len(*in))
	for _, c := range *in {
		if slug := s.san.Sanitize(c, sanitize.TypeSlug); slug != "" {
			out = append(out, slug)
		}
	}
	return out
}

// registerTags normalizes a comma-separated tag list and registers each
// tag in the global taxonomy.
func (s *PostStore) registerTags(tags string) string {
	names := splitTags(s.san.Sanitize(tags, sanitize.TypeString))
	if len(names) == 0 {
		return ""
	}
	s.taxonomy.RegisterTags(names)
	return strings.Join(names, ", ")
}

func splitTags(tags string) []string {
	parts := strings.Split(tags, ",")
	names := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

func (s *PostStore) postPath(id string) string {
	return filepath.Join(s.postsDir, id+".json")
}

func (s *PostStore) readPost(path string) (*models.Post, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "read post", Err: err}
	}
	var post models.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, ErrNotFound
	}
	if post.Categories == nil {
		post.Categories = []string{}
	}
	return &post, nil
}

func (s *PostStore) writePost(post *models.Post) error {
	raw, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode post", Err: err}
	}
	if err := os.WriteFile(s.postPath(post.ID), raw, 0o600); err != nil {
		return &StorageError{Op: "write post", Err: err}
	}
	return nil
}

// updateIndex regenerates the listing index from the full post set.
// Failures are non-fatal; the index is a cache, the post files are the
// source of truth.
func (s *PostStore) updateIndex() {
	all, err := s.All("all", "created_at", "DESC")
	if err != nil {
		return
	}

	index := make([]models.IndexEntry, 0, len(all))
	for _, post := range all {
		index = append(index, models.IndexEntry{
			ID:        post.ID,
			Title:     post.Title,
			Slug:      post.Slug,
			Status:    post.Status,
			CreatedAt: post.CreatedAt,
			UpdatedAt: post.UpdatedAt,
		})
	}

	raw, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(s.dataDir, "post_index.json"), raw, 0o600)
}

func sortPosts(posts []models.Post, orderBy, order string) {
	desc := !strings.EqualFold(order, "ASC")

	less := func(i, j int) bool { return posts[i].CreatedAt < posts[j].CreatedAt }
	switch orderBy {
	case "updated_at":
		less = func(i, j int) bool { return posts[i].UpdatedAt < posts[j].UpdatedAt }
	case "views":
		less = func(i, j int) bool { return posts[i].Views < posts[j].Views }
	case "title":
		less = func(i, j int) bool {
			return strings.ToLower(posts[i].Title) < strings.ToLower(posts[j].Title)
		}
	}

	sort.SliceStable(posts, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func pick(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func validStatus(v, fallback string) string {
	if v == models.StatusDraft || v == models.StatusPublished {
		return v
	}
	return fallback
}

func validVisibility(v, fallback string) string {
	if v == models.VisibilityPublic || v == models.VisibilityPrivate {
		return v
	}
	return fallback
}
