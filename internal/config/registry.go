package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"regliq/internal/liquidity"
	"regliq/internal/validation"
)

// RegistryFile is the YAML document holding validation rules and reference data
//
//	rules:
//	  - id: ENUM_CURRENCY
//	    category: enumeration
//	    name: Currency must be allowed
//	    target_field: currency
//	    is_active: true
//	allowed_values:
//	  currency: [USD, EUR]
//	legal_entities: [LE001]
type RegistryFile struct {
	Rules         []validation.ValidationRule `yaml:"rules"`
	AllowedValues map[string][]string         `yaml:"allowed_values"`
	LegalEntities []string                    `yaml:"legal_entities"`
}

// Registries returns the reference data part of the file
func (r *RegistryFile) Registries() validation.Registries {
	return validation.Registries{
		AllowedValues: r.AllowedValues,
		LegalEntities: r.LegalEntities,
	}
}

// LoadRegistry reads and checks a registry file
func LoadRegistry(path string) (*RegistryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var reg RegistryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(reg.Rules))
	for i, rule := range reg.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("registry rule %d has no id", i)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("registry rule %s is declared twice", rule.ID)
		}
		seen[rule.ID] = true
	}

	return &reg, nil
}

// LoadParameters reads a regulatory parameter file. Keys missing from the
// file keep their default value.
func LoadParameters(path string) (liquidity.Parameters, error) {
	params := liquidity.DefaultParameters()

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("read parameters file: %w", err)
	}

	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("parse parameters file %s: %w", path, err)
	}

	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("invalid parameters in %s: %w", path, err)
	}

	return params, nil
}
