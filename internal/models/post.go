package models

// Post statuses and visibilities are stored as plain strings so the on-disk
// JSON stays readable and hand-editable.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"

	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Post is one blog post, persisted as data/posts/<id>.json.
// ID is immutable after creation; Slug is unique across all posts.
type Post struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	Excerpt           string   `json:"excerpt"`
	Slug              string   `json:"slug"`
	Author            string   `json:"author"`
	Status            string   `json:"status"`
	CreatedAt         int64    `json:"created_at"`
	UpdatedAt         int64    `json:"updated_at"`
	Views             int64    `json:"views"`
	MetaDescription   string   `json:"meta_description"`
	MetaKeywords      string   `json:"meta_keywords"`
	Visibility        string   `json:"visibility"`
	PasswordProtected bool     `json:"password_protected"`
	PostPassword      string   `json:"post_password"`
	Categories        []string `json:"categories"`
	Tags              string   `json:"tags"`
}

// PostInput carries fields for create/update. Nil pointers mean "not
// provided": on create they fall back to defaults, on update to the stored
// value.
type PostInput struct {
	Title             *string   `json:"title"`
	Content           *string   `json:"content"`
	Excerpt           *string   `json:"excerpt"`
	Slug              *string   `json:"slug"`
	Status            *string   `json:"status"`
	MetaDescription   *string   `json:"meta_description"`
	MetaKeywords      *string   `json:"meta_keywords"`
	Visibility        *string   `json:"visibility"`
	PasswordProtected *bool     `json:"password_protected"`
	PostPassword      *string   `json:"post_password"`
	Categories        *[]string `json:"categories"`
	Tags              *string   `json:"tags"`
}

// IndexEntry is the lightweight listing record kept in data/post_index.json.
type IndexEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Pagination describes one page of a post listing.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalPosts  int  `json:"total_posts"`
	PerPage     int  `json:"per_page"`
	HasPrevious bool `json:"has_previous"`
	HasNext     bool `json:"has_next"`
}

// Backup is a full snapshot of the post set, persisted as
// data/backups/backup_<date>.json.
type Backup struct {
	Timestamp int64  `json:"timestamp"`
	Date      string `json:"date"`
	Reason    string `json:"reason"`
	RelatedID string `json:"related_id"`
	Posts     []Post `json:"posts"`
}

// BackupInfo summarises one backup file for listings.
type BackupInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Date     string `json:"date"`
}

// Statistics are derived counters over the whole post set.
type Statistics struct {
	TotalPosts     int   `json:"total_posts"`
	PublishedPosts int   `json:"published_posts"`
	DraftPosts     int   `json:"draft_posts"`
	TotalViews     int64 `json:"total_views"`
}
