package fixtures

import "slices"

// Catalog lists the known filter values.
type Catalog struct {
	Categories  []string `json:"categories"`
	PopularTags []string `json:"popularTags"`
	Units       []string `json:"units"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Categories: []string{
			"Development", "Cloud", "Security", "Data Science",
			"DevOps", "Business", "Design", "Management",
		},
		PopularTags: []string{
			"react", "javascript", "python", "aws", "kubernetes", "machine-learning",
			"security", "agile", "ux-design", "data-science", "backend", "frontend",
		},
		Units: []string{
			"Platform", "Infrastructure", "User Experience", "Security",
			"Analytics", "Product", "AI Research", "Delivery",
		},
	}
}

// HasCategory reports whether name is a known category.
func (c Catalog) HasCategory(name string) bool {
	return slices.Contains(c.Categories, name)
}
