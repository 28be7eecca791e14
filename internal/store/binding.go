package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// DefaultState is the state bindings belong to when none is given.
const DefaultState = "main"

// Binding routes a command pattern in a state to a plugin action. Empty
// Gesture, Keyword or Interactable fields are wildcards.
type Binding struct {
	ID           string
	State        string
	Gesture      string
	Keyword      string
	Interactable string
	PluginName   string
	ActionName   string
	Config       json.RawMessage
	Enabled      bool
	CreatedAt    time.Time
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, state, gesture, keyword, interactable, plugin_name, action_name, config, enabled, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBinding(row scanner) (*Binding, error) {
	b := &Binding{}
	var config string
	var enabled int

	if err := row.Scan(&b.ID, &b.State, &b.Gesture, &b.Keyword, &b.Interactable,
		&b.PluginName, &b.ActionName, &config, &enabled, &b.CreatedAt); err != nil {
		return nil, err
	}

	b.Config = json.RawMessage(config)
	b.Enabled = enabled != 0
	return b, nil
}

// NormalizeConfig maps an absent or null config to the empty object.
func NormalizeConfig(c json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(c)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	return c
}

// Create inserts a new binding. An empty State is stored as DefaultState.
func (r *BindingRepository) Create(b *Binding) error {
	b.CreatedAt = time.Now()
	if b.State == "" {
		b.State = DefaultState
	}

	_, err := r.db.Exec(
		`INSERT INTO bindings (`+bindingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.State, b.Gesture, b.Keyword, b.Interactable,
		b.PluginName, b.ActionName, string(NormalizeConfig(b.Config)), b.Enabled, b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List retrieves all bindings in creation order.
func (r *BindingRepository) List() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY created_at, rowid`)
}

// ListEnabled retrieves enabled bindings in creation order.
func (r *BindingRepository) ListEnabled() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM bindings WHERE enabled = 1 ORDER BY created_at, rowid`)
}

func (r *BindingRepository) query(q string, args ...any) ([]*Binding, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

// Update updates an existing binding.
func (r *BindingRepository) Update(b *Binding) error {
	if b.State == "" {
		b.State = DefaultState
	}

	enabled := 0
	if b.Enabled {
		enabled = 1
	}

	result, err := r.db.Exec(
		`UPDATE bindings SET state = ?, gesture = ?, keyword = ?, interactable = ?,
		 plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		b.State, b.Gesture, b.Keyword, b.Interactable,
		b.PluginName, b.ActionName, string(NormalizeConfig(b.Config)), enabled, b.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
