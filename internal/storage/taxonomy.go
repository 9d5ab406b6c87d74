package storage

import (
	"encoding/json"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
)

var slugifyRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL slug from a human-readable name.
func slugify(name string) string {
	slug := strings.ToLower(name)
	slug = slugifyRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// TaxonomyStore manages the global category and tag registry in
// data/taxonomy.json.
type TaxonomyStore struct {
	path string
}

func NewTaxonomyStore(path string) *TaxonomyStore {
	return &TaxonomyStore{path: path}
}

// Load reads the registry; a missing or corrupt file reads as empty.
func (s *TaxonomyStore) Load() models.Taxonomy {
	tax := models.Taxonomy{Categories: []models.Term{}, Tags: []models.Term{}}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return tax
	}
	_ = json.Unmarshal(raw, &tax)
	if tax.Categories == nil {
		tax.Categories = []models.Term{}
	}
	if tax.Tags == nil {
		tax.Tags = []models.Term{}
	}
	return tax
}

func (s *TaxonomyStore) save(tax models.Taxonomy) error {
	raw, err := json.MarshalIndent(&tax, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode taxonomy", Err: err}
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return &StorageError{Op: "write taxonomy", Err: err}
	}
	return nil
}

func (s *TaxonomyStore) Categories() []models.Term {
	return s.Load().Categories
}

func (s *TaxonomyStore) Tags() []models.Term {
	return s.Load().Tags
}

// AddCategory registers a new category; duplicate slugs or names (case
// insensitive) are rejected.
func (s *TaxonomyStore) AddCategory(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Message: "Category name cannot be empty."}
	}

	tax := s.Load()
	slug := slugify(name)
	for _, c := range tax.Categories {
		if c.Slug == slug || strings.EqualFold(c.Name, name) {
			return &ValidationError{Message: "Category already exists."}
		}
	}

	tax.Categories = append(tax.Categories, models.Term{Slug: slug, Name: name})
	sortTerms(tax.Categories)
	return s.save(tax)
}

// AddTag registers a new tag. Adding an existing tag is not an error for
// callers that bulk-register from post input; they check Exists first or
// ignore the duplicate.
func (s *TaxonomyStore) AddTag(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Message: "Tag name cannot be empty."}
	}

	tax := s.Load()
	slug := slugify(name)
	for _, t := range tax.Tags {
		if t.Slug == slug || strings.EqualFold(t.Name, name) {
			return &ValidationError{Message: "Tag already exists."}
		}
	}

	tax.Tags = append(tax.Tags, models.Term{Slug: slug, Name: name})
	sortTerms(tax.Tags)
	return s.save(tax)
}

// RegisterTags adds any unknown tags from a post's tag list, ignoring
// duplicates.
func (s *TaxonomyStore) RegisterTags(names []string) {
	for _, name := range names {
		_ = s.AddTag(name)
	}
}

func sortTerms(terms []models.Term) {
	sort.Slice(terms, func(i, j int) bool {
		return strings.ToLower(terms[i].Name) < strings.ToLower(terms[j].Name)
	})
}
