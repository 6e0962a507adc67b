package cli

import (
	"fmt"

	"github.com/ConnerAdamsMaine/PTree/internal/config"
)

// ValidateParams holds parameters for the Validate function
type ValidateParams struct {
	ConfigPath string
}

// Validate checks a configuration file against the schema.
func Validate(params ValidateParams) error {
	result, err := config.Validate(params.ConfigPath)
	if err != nil {
		return err
	}

	if result.Valid {
		fmt.Printf("✓ %s is valid\n", params.ConfigPath)
		return nil
	}

	fmt.Printf("✗ %s has %d problem(s):\n", params.ConfigPath, len(result.Errors))
	for _, e := range result.Errors {
		fmt.Printf("  %s: %s\n", e.Field, e.Message)
	}
	return fmt.Errorf("configuration is invalid")
}
