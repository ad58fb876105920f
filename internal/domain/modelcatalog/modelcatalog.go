package modelcatalog

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"parley-server/internal/domain/provider"
	"parley-server/internal/infrastructure/inference"
	"parley-server/internal/utils/platformerrors"
)

// Model is one catalog entry: a model a configured provider can serve.
type Model struct {
	ID          uint
	ModelID     string
	DisplayName string
	Provider    string
	Enabled     bool
	SyncedAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository persists the catalog.
type Repository interface {
	Upsert(ctx context.Context, model *Model) error
	List(ctx context.Context) ([]*Model, error)
	DisableMissing(ctx context.Context, providerKey string, keepModelIDs []string) error
}

// SettingsSource yields the enabled provider settings.
type SettingsSource interface {
	EnabledSettings(ctx context.Context) []*provider.Settings
}

// AdapterSource dispatches to vendor adapters.
type AdapterSource interface {
	Adapter(ctx context.Context, kind provider.Kind) (inference.Adapter, error)
}

// Service maintains the model catalog from vendor listings.
type Service struct {
	repo      Repository
	providers SettingsSource
	adapters  AdapterSource
	log       zerolog.Logger
}

// NewService wires the catalog service.
func NewService(repo Repository, providers SettingsSource, adapters AdapterSource, log zerolog.Logger) *Service {
	return &Service{repo: repo, providers: providers, adapters: adapters, log: log}
}

// List returns the current catalog.
func (s *Service) List(ctx context.Context) ([]*Model, error) {
	models, err := s.repo.List(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list model catalog")
	}
	return models, nil
}

// Sync refreshes the catalog from every enabled provider. Vendor failures
// are provider-scoped: one unreachable vendor does not block the rest.
func (s *Service) Sync(ctx context.Context) error {
	var lastErr error
	for _, settings := range s.providers.EnabledSettings(ctx) {
		if err := s.syncProvider(ctx, settings); err != nil {
			s.log.Warn().Err(err).Str("provider", string(settings.Kind)).Msg("model sync failed for provider")
			lastErr = err
		}
	}
	return lastErr
}

func (s *Service) syncProvider(ctx context.Context, settings *provider.Settings) error {
	adapter, err := s.adapters.Adapter(ctx, settings.Kind)
	if err != nil {
		return err
	}

	vendorModels, err := adapter.ListModels(ctx, settings)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	kept := make([]string, 0, len(vendorModels))
	for _, vendorModel := range vendorModels {
		if !settings.AllowsModel(vendorModel.ID) {
			continue
		}
		kept = append(kept, vendorModel.ID)
		if err := s.repo.Upsert(ctx, &Model{
			ModelID:     vendorModel.ID,
			DisplayName: vendorModel.DisplayName,
			Provider:    string(settings.Kind),
			Enabled:     true,
			SyncedAt:    now,
		}); err != nil {
			return err
		}
	}

	return s.repo.DisableMissing(ctx, string(settings.Kind), kept)
}
