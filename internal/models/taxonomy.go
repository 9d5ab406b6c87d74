package models

// Term is one category or tag.
type Term struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Taxonomy is the global category/tag registry, persisted as
// data/taxonomy.json.
type Taxonomy struct {
	Categories []Term `json:"categories"`
	Tags       []Term `json:"tags"`
}
