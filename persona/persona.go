// Package persona resolves PersonaRecords from storage and from persona JSON
// files on disk.
package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/logging"
	"github.com/hupe1980/personamesh/store"
)

// ErrNotFound marks a persona id that does not exist. Fatal for the session
// that requested it; other personas in a batch are unaffected.
var ErrNotFound = errors.New("persona not found")

// Provider resolves personas for session runs.
type Provider interface {
	// GetByID returns the persona with the given id or ErrNotFound.
	GetByID(ctx context.Context, id string) (*core.PersonaRecord, error)
	// List returns all known personas.
	List(ctx context.Context) ([]*core.PersonaRecord, error)
}

// FromFile reads a persona JSON document from disk. A missing id falls back
// to the participant id, then to the file name stem.
func FromFile(path string) (*core.PersonaRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	var rec core.PersonaRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	if rec.ID == "" {
		rec.ID = rec.ParticipantID
	}
	if rec.ID == "" {
		rec.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &rec, nil
}

// StoreProviderOptions configure a StoreProvider.
type StoreProviderOptions struct {
	Logger logging.Logger
}

// StoreProvider resolves personas from a store.Store.
type StoreProvider struct {
	store  store.Store
	logger logging.Logger
}

var _ Provider = (*StoreProvider)(nil)

// NewStoreProvider constructs a Provider backed by the given store.
func NewStoreProvider(s store.Store, optFns ...func(o *StoreProviderOptions)) *StoreProvider {
	opts := StoreProviderOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &StoreProvider{store: s, logger: opts.Logger}
}

// GetByID implements Provider.
func (p *StoreProvider) GetByID(ctx context.Context, id string) (*core.PersonaRecord, error) {
	rec, err := p.store.GetPersona(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// List implements Provider.
func (p *StoreProvider) List(ctx context.Context) ([]*core.PersonaRecord, error) {
	return p.store.ListPersonas(ctx)
}

// LoadDir imports every *.json persona document under dir into the store,
// skipping ids that already exist. Returns the number of personas loaded and
// skipped.
func (p *StoreProvider) LoadDir(ctx context.Context, dir string) (loaded, skipped int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read persona directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rec, err := FromFile(path)
		if err != nil {
			return loaded, skipped, err
		}
		created, err := p.store.PutPersona(ctx, rec)
		if err != nil {
			return loaded, skipped, fmt.Errorf("store persona %s: %w", rec.ID, err)
		}
		if created {
			loaded++
		} else {
			skipped++
			p.logger.Debug("persona already exists, skipping", "persona_id", rec.ID)
		}
	}
	return loaded, skipped, nil
}
