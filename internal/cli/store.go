package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mesh-intelligence/unhitch/internal/shop"
	"github.com/mesh-intelligence/unhitch/internal/sqlite"
)

// openShop opens the configured record store and a repository over it.
// The caller must Close the returned backend.
func (a *app) openShop() (*sqlite.Backend, *shop.Repository, error) {
	backend := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := backend.Open(a.config); err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return backend, shop.NewRepository(backend, shop.WithLogger(a.logger)), nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
