package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  C++ & Go!  ", "c-go"},
		{"already-a-slug", "already-a-slug"},
		{"---", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, slugify(c.in), "slugify(%q)", c.in)
	}
}

func TestAddCategoryDedupe(t *testing.T) {
	tax := NewTaxonomyStore(filepath.Join(t.TempDir(), "taxonomy.json"))

	require.NoError(t, tax.AddCategory("Tech News"))

	var verr *ValidationError
	// Same slug.
	require.ErrorAs(t, tax.AddCategory("tech news"), &verr)
	assert.Equal(t, "Category already exists.", verr.Message)
	// Same name, different case.
	require.ErrorAs(t, tax.AddCategory("TECH NEWS"), &verr)

	require.ErrorAs(t, tax.AddCategory("   "), &verr)
	assert.Equal(t, "Category name cannot be empty.", verr.Message)

	cats := tax.Categories()
	require.Len(t, cats, 1)
	assert.Equal(t, "tech-news", cats[0].Slug)
	assert.Equal(t, "Tech News", cats[0].Name)
}

func TestTagsSortedByName(t *testing.T) {
	tax := NewTaxonomyStore(filepath.Join(t.TempDir(), "taxonomy.json"))

	tax.RegisterTags([]string{"zeta", "Alpha", "midway"})
	// Duplicates from a second post are ignored.
	tax.RegisterTags([]string{"alpha", "midway"})

	tags := tax.Tags()
	require.Len(t, tags, 3)
	assert.Equal(t, "Alpha", tags[0].Name)
	assert.Equal(t, "midway", tags[1].Name)
	assert.Equal(t, "zeta", tags[2].Name)
}

func TestMissingTaxonomyFileReadsEmpty(t *testing.T) {
	tax := NewTaxonomyStore(filepath.Join(t.TempDir(), "absent.json"))
	assert.Empty(t, tax.Categories())
	assert.Empty(t, tax.Tags())
}
