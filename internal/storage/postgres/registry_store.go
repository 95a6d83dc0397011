package postgres

import (
	"context"
	"fmt"

	"regliq/internal/storage"
	"regliq/internal/validation"
)

// RegistryStore implements storage.RegistryStore using PostgreSQL.
type RegistryStore struct {
	pool *Pool
}

// NewRegistryStore creates a new RegistryStore.
func NewRegistryStore(pool *Pool) *RegistryStore {
	return &RegistryStore{pool: pool}
}

var _ storage.RegistryStore = (*RegistryStore)(nil)

// UpsertRule inserts or replaces a rule. Rules keep their first insertion order.
func (s *RegistryStore) UpsertRule(ctx context.Context, rule validation.ValidationRule) error {
	if rule.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO validation_rules (id, category, name, target_field, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			name = EXCLUDED.name,
			target_field = EXCLUDED.target_field,
			is_active = EXCLUDED.is_active,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query, rule.ID, string(rule.Category), rule.Name, rule.TargetField, rule.IsActive)
	if err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	return nil
}

// Rules returns every rule in insertion order.
func (s *RegistryStore) Rules(ctx context.Context) ([]validation.ValidationRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category, name, target_field, is_active
		FROM validation_rules
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []validation.ValidationRule
	for rows.Next() {
		var (
			rule     validation.ValidationRule
			category string
		)
		if err := rows.Scan(&rule.ID, &category, &rule.Name, &rule.TargetField, &rule.IsActive); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Category = validation.RuleCategory(category)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// AddAllowedValues registers values for an enumeration field. Existing values are ignored.
func (s *RegistryStore) AddAllowedValues(ctx context.Context, field string, values ...string) error {
	if field == "" {
		return storage.ErrInvalidInput
	}
	if len(values) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO allowed_values (field_name, value)
		SELECT DISTINCT $1::text, v FROM unnest($2::text[]) AS v
		ON CONFLICT DO NOTHING
	`, field, values)
	if err != nil {
		return fmt.Errorf("insert allowed values: %w", err)
	}
	return nil
}

// AllowedValues returns the allowed values of every field, each list sorted.
func (s *RegistryStore) AllowedValues(ctx context.Context) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT field_name, value
		FROM allowed_values
		ORDER BY field_name ASC, value ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list allowed values: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("scan allowed value: %w", err)
		}
		result[field] = append(result[field], value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allowed values: %w", err)
	}
	return result, nil
}

// AddLegalEntities registers legal entity ids. Existing ids are ignored.
func (s *RegistryStore) AddLegalEntities(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return storage.ErrInvalidInput
		}
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO legal_entities (id)
		SELECT DISTINCT v FROM unnest($1::text[]) AS v
		ON CONFLICT DO NOTHING
	`, ids)
	if err != nil {
		return fmt.Errorf("insert legal entities: %w", err)
	}
	return nil
}

// LegalEntities returns every registered legal entity id, sorted.
func (s *RegistryStore) LegalEntities(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM legal_entities ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list legal entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan legal entity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legal entities: %w", err)
	}
	return ids, nil
}
