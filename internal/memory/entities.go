package memory

import (
	"database/sql"
	"encoding/json"
	"strings"
)

func (s *Store) CreateEntity(owner, name, kind string) (*Entity, error) {
	res, err := s.db.Exec(
		`INSERT INTO entities (owner_id, name, kind) VALUES (?, ?, ?)`,
		owner, name, kind)
	if err != nil {
		return nil, err
	}

	id, _ := res.LastInsertId()
	return &Entity{ID: id, OwnerID: owner, Name: name, Kind: kind}, nil
}

// FindEntity resolves a name to an entity for the owner, checking canonical
// names first, then aliases.
func (s *Store) FindEntity(owner, name string) (*Entity, error) {
	e, err := s.findEntityByName(owner, name)
	if err == nil {
		return e, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// alias scan; entity counts stay small per owner
	rows, err := s.db.Query(
		`SELECT id, owner_id, name, kind, aliases, created_at, updated_at
		 FROM entities WHERE owner_id = ? AND aliases != '[]'`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		for _, a := range e.Aliases {
			if strings.EqualFold(a, name) {
				return e, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return nil, ErrNotFound
}

// GetOrCreateEntity resolves a name, creating the entity on first sight.
func (s *Store) GetOrCreateEntity(owner, name, kind string) (*Entity, error) {
	e, err := s.FindEntity(owner, name)
	if err == nil {
		return e, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return s.CreateEntity(owner, name, kind)
}

// AddAlias appends an alternative name to an entity. Aliasing is a soft
// linkage: records stored under either name resolve to the same entity, but
// no content is merged.
func (s *Store) AddAlias(entityID int64, alias string) error {
	var raw string
	err := s.db.QueryRow(`SELECT aliases FROM entities WHERE id = ?`, entityID).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var aliases []string
	if err := json.Unmarshal([]byte(raw), &aliases); err != nil {
		aliases = nil
	}
	for _, a := range aliases {
		if strings.EqualFold(a, alias) {
			return nil
		}
	}
	aliases = append(aliases, alias)

	out, err := json.Marshal(aliases)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`UPDATE entities SET aliases = ?, updated_at = datetime('now') WHERE id = ?`,
		string(out), entityID)
	return err
}

// KnownEntityNames returns every canonical name and alias for the owner,
// used to prime extraction with disambiguation context.
func (s *Store) KnownEntityNames(owner string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name, aliases FROM entities WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		names = append(names, name)

		var aliases []string
		if json.Unmarshal([]byte(raw), &aliases) == nil {
			names = append(names, aliases...)
		}
	}
	return names, rows.Err()
}

func (s *Store) findEntityByName(owner, name string) (*Entity, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, name, kind, aliases, created_at, updated_at
		 FROM entities WHERE owner_id = ? AND name = ? COLLATE NOCASE`, owner, name)
	return scanEntity(row)
}

func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var raw string
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Kind, &raw, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &e.Aliases); err != nil {
		e.Aliases = nil
	}
	return &e, nil
}
