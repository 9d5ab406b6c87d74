package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
	"github.com/AfterPacket/secure-blog-cms/internal/sanitize"
	"github.com/AfterPacket/secure-blog-cms/internal/security"
)

func newTestStore(t *testing.T) *PostStore {
	t.Helper()
	dataDir := t.TempDir()
	for _, sub := range []string{"posts", "backups", "logs"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dataDir, sub), 0o700))
	}

	return NewPostStore(Options{
		DataDir:          dataDir,
		Sanitizer:        sanitize.New([]string{"p", "br", "strong", "em", "a"}),
		Vault:            security.NewPasswordVault(),
		Taxonomy:         NewTaxonomyStore(filepath.Join(dataDir, "taxonomy.json")),
		Log:              security.NewEventLog(filepath.Join(dataDir, "logs")),
		MaxTitleLength:   200,
		MaxContentLength: 50000,
		MaxExcerptLength: 500,
		AutoBackup:       true,
		MaxBackups:       3,
	})
}

func ptr[T any](v T) *T { return &v }

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	post, err := store.Create(models.PostInput{
		Title:   ptr("Hello World"),
		Content: ptr("<p>First post</p>"),
		Status:  ptr(models.StatusPublished),
	}, "admin")
	require.NoError(t, err)

	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, models.StatusPublished, post.Status)
	assert.Equal(t, "admin", post.Author)

	got, err := store.GetByID(post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Title, got.Title)

	bySlug, err := store.GetBySlug("hello-world")
	require.NoError(t, err)
	assert.Equal(t, post.ID, bySlug.ID)
}

func TestCreateRequiresTitleAndContent(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(models.PostInput{Title: ptr("Only title")}, "admin")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Title and content are required", verr.Message)

	// A title that is nothing but markup sanitizes to empty.
	_, err = store.Create(models.PostInput{
		Title:   ptr("<script></script>"),
		Content: ptr("body"),
	}, "admin")
	require.ErrorAs(t, err, &verr)
}

func TestCreateEnforcesLengthLimits(t *testing.T) {
	store := newTestStore(t)

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	_, err := store.Create(models.PostInput{
		Title:   ptr(string(long)),
		Content: ptr("body"),
	}, "admin")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Title too long", verr.Message)
}

func TestSlugUniquenessSuffixes(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.Create(models.PostInput{
			Title:   ptr("Same Title"),
			Content: ptr("body"),
		}, "admin")
		require.NoError(t, err)
	}

	slugs := map[string]bool{}
	all, err := store.All("all", "created_at", "ASC")
	require.NoError(t, err)
	for _, p := range all {
		slugs[p.Slug] = true
	}
	assert.True(t, slugs["same-title"])
	assert.True(t, slugs["same-title-1"])
	assert.True(t, slugs["same-title-2"])
}

func TestUpdateKeepsSlugUnlessChanged(t *testing.T) {
	store := newTestStore(t)

	post, err := store.Create(models.PostInput{
		Title:   ptr("Original"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	// Updating the title alone must not touch the slug.
	updated, err := store.Update(post.ID, models.PostInput{Title: ptr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "original", updated.Slug)
	assert.Equal(t, "Renamed", updated.Title)

	// An explicit new slug is applied and de-duplicated.
	_, err = store.Create(models.PostInput{
		Title:   ptr("Taken"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	updated, err = store.Update(post.ID, models.PostInput{Slug: ptr("taken")})
	require.NoError(t, err)
	assert.Equal(t, "taken-1", updated.Slug)
}

func TestUpdateUnknownPost(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Update("missing", models.PostInput{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPasswordProtectedPosts(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(models.PostInput{
		Title:             ptr("Secret"),
		Content:           ptr("body"),
		PasswordProtected: ptr(true),
	}, "admin")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Password is required for protected posts", verr.Message)

	post, err := store.Create(models.PostInput{
		Title:             ptr("Secret"),
		Content:           ptr("body"),
		PasswordProtected: ptr(true),
		PostPassword:      ptr("letmein"),
	}, "admin")
	require.NoError(t, err)
	assert.True(t, post.PasswordProtected)
	assert.Contains(t, post.PostPassword, "$argon2id$")

	// Turning protection off clears the stored hash.
	updated, err := store.Update(post.ID, models.PostInput{PasswordProtected: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.PasswordProtected)
	assert.Empty(t, updated.PostPassword)
}

func TestViewCounting(t *testing.T) {
	store := newTestStore(t)

	post, err := store.Create(models.PostInput{
		Title:   ptr("Counted"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	// Authenticated reads never count.
	got, err := store.View(post.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.Views)

	got, err = store.View(post.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Views)

	got, err = store.GetBySlug(got.Slug)
	require.NoError(t, err)
	got, err = store.View(got.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Views)
}

func TestExcerptGeneration(t *testing.T) {
	store := newTestStore(t)

	content := "<p>" +
		"The quick brown fox jumps over the lazy dog again and again, " +
		"sentence after sentence, until the text is comfortably longer than " +
		"any excerpt limit this store will ever be configured with, because " +
		"the excerpt must end at a word boundary and carry a trailing " +
		"ellipsis rather than cutting a word in half at an arbitrary byte." +
		"</p>"

	store.maxExcerpt = 80
	post, err := store.Create(models.PostInput{
		Title:   ptr("Excerpted"),
		Content: ptr(content),
	}, "admin")
	require.NoError(t, err)

	assert.LessOrEqual(t, len([]rune(post.Excerpt)), 80)
	assert.True(t, len(post.Excerpt) > 0)
	assert.Contains(t, post.Excerpt, "...")
	assert.NotContains(t, post.Excerpt, "<p>")
}

func TestExplicitExcerptPreserved(t *testing.T) {
	store := newTestStore(t)

	post, err := store.Create(models.PostInput{
		Title:   ptr("Custom"),
		Content: ptr("body"),
		Excerpt: ptr("Hand-written summary"),
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Hand-written summary", post.Excerpt)
}

func TestPaginate(t *testing.T) {
	store := newTestStore(t)
	store.autoBackup = false

	for i := 0; i < 7; i++ {
		_, err := store.Create(models.PostInput{
			Title:   ptr("Post"),
			Content: ptr("body"),
		}, "admin")
		require.NoError(t, err)
	}

	page, pg, err := store.Paginate(1, 3, "all")
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.Equal(t, 3, pg.TotalPages)
	assert.Equal(t, 7, pg.TotalPosts)
	assert.False(t, pg.HasPrevious)
	assert.True(t, pg.HasNext)

	last, pg, err := store.Paginate(3, 3, "all")
	require.NoError(t, err)
	assert.Len(t, last, 1)
	assert.True(t, pg.HasPrevious)
	assert.False(t, pg.HasNext)

	// Out-of-range page clamps to the last page.
	clamped, pg, err := store.Paginate(99, 3, "all")
	require.NoError(t, err)
	assert.Len(t, clamped, 1)
	assert.Equal(t, 3, pg.CurrentPage)
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)
	store.autoBackup = false

	_, err := store.Create(models.PostInput{
		Title:   ptr("Gardening tips"),
		Content: ptr("How to grow tomatoes"),
		Status:  ptr(models.StatusPublished),
	}, "admin")
	require.NoError(t, err)

	_, err = store.Create(models.PostInput{
		Title:        ptr("Unrelated"),
		Content:      ptr("Nothing to see"),
		MetaKeywords: ptr("tomatoes, vegetables"),
		Status:       ptr(models.StatusPublished),
	}, "admin")
	require.NoError(t, err)

	results, err := store.Search("TOMATOES", "all")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = store.Search("grow", "all")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Gardening tips", results[0].Title)
}

func TestStatusFilterAndSort(t *testing.T) {
	store := newTestStore(t)
	store.autoBackup = false

	draft, err := store.Create(models.PostInput{
		Title:   ptr("Draft one"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, draft.Status)

	_, err = store.Create(models.PostInput{
		Title:   ptr("Published one"),
		Content: ptr("body"),
		Status:  ptr(models.StatusPublished),
	}, "admin")
	require.NoError(t, err)

	published, err := store.All(models.StatusPublished, "created_at", "DESC")
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "Published one", published[0].Title)

	byTitle, err := store.All("all", "title", "ASC")
	require.NoError(t, err)
	require.Len(t, byTitle, 2)
	assert.Equal(t, "Draft one", byTitle[0].Title)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	post, err := store.Create(models.PostInput{
		Title:   ptr("Doomed"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	require.NoError(t, store.Delete(post.ID))
	_, err = store.GetByID(post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(post.ID), ErrNotFound)
}

func TestStatistics(t *testing.T) {
	store := newTestStore(t)
	store.autoBackup = false

	_, err := store.Create(models.PostInput{
		Title:   ptr("Draft"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	pub, err := store.Create(models.PostInput{
		Title:   ptr("Published"),
		Content: ptr("body"),
		Status:  ptr(models.StatusPublished),
	}, "admin")
	require.NoError(t, err)

	_, err = store.View(pub.ID, false)
	require.NoError(t, err)

	stats, err := store.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPosts)
	assert.Equal(t, 1, stats.PublishedPosts)
	assert.Equal(t, 1, stats.DraftPosts)
	assert.EqualValues(t, 1, stats.TotalViews)
}

func TestTagsRegisterInTaxonomy(t *testing.T) {
	store := newTestStore(t)

	post, err := store.Create(models.PostInput{
		Title:   ptr("Tagged"),
		Content: ptr("body"),
		Tags:    ptr("Go, Web Security"),
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Go, Web Security", post.Tags)

	tags := store.taxonomy.Tags()
	require.Len(t, tags, 2)
	assert.Equal(t, "go", tags[0].Slug)
	assert.Equal(t, "web-security", tags[1].Slug)
}

func TestByCategoryAndByTag(t *testing.T) {
	store := newTestStore(t)
	store.autoBackup = false

	_, err := store.Create(models.PostInput{
		Title:      ptr("In category"),
		Content:    ptr("body"),
		Status:     ptr(models.StatusPublished),
		Categories: ptr([]string{"news"}),
		Tags:       ptr("release"),
	}, "admin")
	require.NoError(t, err)

	_, err = store.Create(models.PostInput{
		Title:   ptr("Elsewhere"),
		Content: ptr("body"),
		Status:  ptr(models.StatusPublished),
	}, "admin")
	require.NoError(t, err)

	byCat, err := store.ByCategory("news")
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	assert.Equal(t, "In category", byCat[0].Title)

	byTag, err := store.ByTag("release")
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "In category", byTag[0].Title)
}

func TestBackupAndRestore(t *testing.T) {
	store := newTestStore(t)
	store.autoBackup = false

	keeper, err := store.Create(models.PostInput{
		Title:   ptr("Keeper"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	require.NoError(t, store.Backup("manual", ""))
	backups, err := store.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 1)

	// Mutate after the snapshot, then restore over it.
	_, err = store.Create(models.PostInput{
		Title:   ptr("Intruder"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)
	require.NoError(t, store.Delete(keeper.ID))

	require.NoError(t, store.Restore(backups[0].Filename))

	all, err := store.All("all", "created_at", "DESC")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Keeper", all[0].Title)
}

func TestRestoreRejectsBadFilenames(t *testing.T) {
	store := newTestStore(t)

	var verr *ValidationError
	assert.ErrorAs(t, store.Restore("../etc/passwd"), &verr)
	assert.ErrorAs(t, store.Restore("notes.txt"), &verr)
	assert.ErrorIs(t, store.Restore("backup_2000-01-01_00-00-00.json"), ErrNotFound)
}

func TestRestoreRejectsSnapshotWithoutPosts(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(models.PostInput{
		Title:   ptr("Keeper"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	// Valid JSON, but no posts list. The current posts must survive.
	name := "backup_2026-01-01_00-00-00.json"
	require.NoError(t, os.WriteFile(filepath.Join(store.backupDir, name), []byte("{}"), 0o600))

	var verr *ValidationError
	assert.ErrorAs(t, store.Restore(name), &verr)

	all, err := store.All("all", "created_at", "DESC")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Keeper", all[0].Title)
}

func TestBackupPruning(t *testing.T) {
	store := newTestStore(t)
	store.autoBackup = false

	_, err := store.Create(models.PostInput{
		Title:   ptr("Post"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	// Retention is 3. Seed five snapshots with distinct embedded dates so
	// lexical order decides age.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		name := "backup_" + base.Add(time.Duration(i)*time.Hour).Format("2006-01-02_15-04-05") + ".json"
		require.NoError(t, os.WriteFile(filepath.Join(store.backupDir, name), []byte("{}"), 0o600))
	}
	store.pruneBackups()

	backups, err := store.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 3)
	// Newest first; the two oldest snapshots are gone.
	assert.Equal(t, "backup_2026-01-01_04-00-00.json", backups[0].Filename)
	assert.Equal(t, "backup_2026-01-01_02-00-00.json", backups[2].Filename)
}

func TestAutoBackupOnMutation(t *testing.T) {
	store := newTestStore(t)

	post, err := store.Create(models.PostInput{
		Title:   ptr("Snapshotted"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	require.NoError(t, store.Delete(post.ID))

	backups, err := store.Backups()
	require.NoError(t, err)
	// Snapshot names have second resolution, so the create and delete
	// snapshots may collapse into one file when they land in the same
	// second.
	assert.NotEmpty(t, backups)
}

func TestIndexRegeneration(t *testing.T) {
	store := newTestStore(t)
	store.autoBackup = false

	post, err := store.Create(models.PostInput{
		Title:   ptr("Indexed"),
		Content: ptr("body"),
	}, "admin")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(store.dataDir, "post_index.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), post.ID)
	assert.Contains(t, string(raw), "indexed")
}
