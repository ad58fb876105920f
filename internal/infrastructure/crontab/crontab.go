package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"parley-server/internal/config"
	"parley-server/internal/domain/modelcatalog"
	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/utils/platformerrors"
)

const (
	DefaultModelSyncInterval = 60               // in minutes
	CronJobTimeout           = 10 * time.Minute // Timeout for each cron job execution
)

type Crontab struct {
	ctab    *crontab.Crontab
	catalog *modelcatalog.Service
}

func NewCrontab(catalog *modelcatalog.Service) *Crontab {
	return &Crontab{
		ctab:    crontab.New(),
		catalog: catalog,
	}
}

// Run executes the initial catalog sync, schedules the recurring jobs and
// blocks until the context is cancelled.
func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	// execute once on server start
	c.syncCatalog(ctx)

	cfg := config.GetGlobal()
	if cfg != nil && cfg.ModelSyncEnabled {
		syncInterval := cfg.ModelSyncIntervalMinutes
		if syncInterval <= 0 {
			syncInterval = DefaultModelSyncInterval
		}

		cronExpr := fmt.Sprintf("*/%d * * * *", syncInterval)
		if err := c.ctab.AddJob(cronExpr, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
			defer cancel()
			c.syncCatalog(jobCtx)
		}); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add model sync job")
		}
		log.Info().Msgf("Model sync scheduled: every %d minute(s)", syncInterval)
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) syncCatalog(ctx context.Context) {
	log := logger.GetLogger()
	if err := c.catalog.Sync(ctx); err != nil {
		log.Error().Err(err).Msg("Model catalog sync finished with errors")
		return
	}
	log.Info().Msg("Model catalog sync completed")
}
