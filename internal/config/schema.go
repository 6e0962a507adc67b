package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/xeipuuv/gojsonschema"
)

// GetSchemaJSON returns the JSON Schema for PTree configuration
func GetSchemaJSON() string {
	return `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "PTree Configuration",
  "description": "Configuration file for PTree - cached directory tree indexer",
  "type": "object",
  "properties": {
    "skip": {
      "type": "array",
      "description": "Directory names never descended into (case-insensitive)",
      "items": {
        "type": "string",
        "minLength": 1
      }
    },
    "ttl": {
      "type": "integer",
      "description": "Cache age in seconds below which a rescan is skipped",
      "minimum": 0
    },
    "threads": {
      "type": "integer",
      "description": "Traversal worker count (0 = twice the logical CPUs)",
      "minimum": 0
    },
    "cache": {
      "type": "string",
      "description": "Cache file base path (default: user cache directory)"
    },
    "format": {
      "type": "string",
      "description": "Default output format",
      "enum": ["tree", "json"]
    },
    "show_hidden": {
      "type": "boolean",
      "description": "Mark hidden directories in tree output"
    },
    "max_depth": {
      "type": "integer",
      "description": "Tree depth limit (0 = unlimited)",
      "minimum": 0
    },
    "watch": {
      "type": "object",
      "description": "Watch daemon settings",
      "properties": {
        "interval": {
          "type": "integer",
          "description": "Journal poll period in seconds",
          "minimum": 1
        },
        "debounce": {
          "type": "integer",
          "description": "Quiet period in milliseconds before a notification-driven rescan",
          "minimum": 0
        }
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false
}`
}

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string
	Message string
}

// ValidationResult contains the results of config validation
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// Validate validates a config file against the schema
func Validate(path string) (*ValidationResult, error) {
	result := &ValidationResult{
		Valid:  true,
		Errors: []ValidationError{},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   "syntax",
			Message: fmt.Sprintf("Failed to parse config: %v", err),
		})
		return result, nil
	}

	schemaLoader := gojsonschema.NewStringLoader(GetSchemaJSON())
	documentLoader := gojsonschema.NewGoLoader(k.Raw())

	validationResult, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}

	if !validationResult.Valid() {
		result.Valid = false
		for _, err := range validationResult.Errors() {
			result.Errors = append(result.Errors, ValidationError{
				Field:   err.Field(),
				Message: err.Description(),
			})
		}
	}

	return result, nil
}
