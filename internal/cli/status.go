package cli

import (
	"fmt"

	"github.com/ConnerAdamsMaine/PTree/internal/status"
)

// StatusParams holds parameters for the Status function
type StatusParams struct {
	CachePath string
	LogLevel  string
}

// Status prints cache health information.
func Status(params StatusParams) error {
	store, err := openStore(params.CachePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	data := status.Collect(store)
	fmt.Print(status.Render(data))
	return nil
}
