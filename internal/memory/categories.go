package memory

// Seeded category taxonomy. Records and summaries reference slugs; decay
// half-life overrides are keyed by slug too.
var seedCategories = []Category{
	{ID: 1, Name: "Identity & Self", Slug: "identity"},
	{ID: 2, Name: "Health & Body", Slug: "health"},
	{ID: 3, Name: "Relationships", Slug: "relationships"},
	{ID: 4, Name: "Career & Work", Slug: "career"},
	{ID: 5, Name: "Finances", Slug: "finances"},
	{ID: 6, Name: "Places & Living", Slug: "place"},
	{ID: 7, Name: "Goals & Plans", Slug: "goals"},
	{ID: 8, Name: "Preferences", Slug: "preferences"},
	{ID: 9, Name: "Routines", Slug: "routines"},
	{ID: 10, Name: "Events", Slug: "events"},
	{ID: 11, Name: "Projects", Slug: "projects"},
	{ID: 12, Name: "Knowledge", Slug: "knowledge"},
}

// CategorySlugs maps slug to seeded category ID.
var CategorySlugs = func() map[string]int {
	m := make(map[string]int, len(seedCategories))
	for _, c := range seedCategories {
		m[c.Slug] = c.ID
	}
	return m
}()

func (s *Store) seedCategories() error {
	for _, c := range seedCategories {
		_, err := s.db.Exec(
			`INSERT INTO categories (id, name, slug) VALUES (?, ?, ?)
			 ON CONFLICT(slug) DO NOTHING`,
			c.ID, c.Name, c.Slug)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetCategory(slug string) (*Category, error) {
	var c Category
	err := s.db.QueryRow(`SELECT id, name, slug FROM categories WHERE slug = ?`, slug).
		Scan(&c.ID, &c.Name, &c.Slug)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCategories() ([]*Category, error) {
	rows, err := s.db.Query(`SELECT id, name, slug FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		cats = append(cats, &c)
	}
	return cats, rows.Err()
}

// NormalizeCategory maps an arbitrary slug to a seeded one, defaulting to
// knowledge for anything unrecognized.
func NormalizeCategory(slug string) string {
	if _, ok := CategorySlugs[slug]; ok {
		return slug
	}
	return "knowledge"
}
