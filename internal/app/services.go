package app

import (
	"gorm.io/gorm"

	dataagg "github.com/BabaYagaSystems/aroundly-backend/internal/data/aggregates"
	domainagg "github.com/BabaYagaSystems/aroundly-backend/internal/domain/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/jobs/sweeper"
	"github.com/BabaYagaSystems/aroundly-backend/internal/observability"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
	"github.com/BabaYagaSystems/aroundly-backend/internal/services"
)

type Services struct {
	IncidentAggregate domainagg.IncidentAggregate
	Incident          services.IncidentService
	Reaction          services.ReactionService
	Sweeper           *sweeper.Sweeper
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	aggregate := dataagg.NewIncidentAggregate(dataagg.IncidentAggregateDeps{
		Base: dataagg.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: dataagg.NewMetricsHooks(metrics),
		},
		Incidents:   reposet.Incident,
		Engagements: reposet.Engagement,
		Reactions:   reposet.Reaction,
		Locations:   reposet.Location,
		Retry:       dataagg.RetryPolicy{MaxAttempts: cfg.MaxAttempts},
	})
	contract := aggregate.Contract()
	log.Info("Aggregate wired", "aggregate", contract.Name, "tables", contract.Tables, "max_attempts", cfg.MaxAttempts)

	// A nil *MediaStore must not become a non-nil interface.
	var media services.ObjectStore
	if clients.Media != nil {
		media = clients.Media
	}

	incidentService := services.NewIncidentService(services.IncidentServiceDeps{
		Log:         log,
		Aggregate:   aggregate,
		Incidents:   reposet.Incident,
		Locations:   services.NewLocationResolver(log, services.NopGeocoder()),
		Media:       media,
		Broadcaster: clients.Bus,
		Counter:     clients.Counter,
		Metrics:     metrics,
		PurgeBatch:  cfg.PurgeBatch,
	})

	reactionService := services.NewReactionService(services.ReactionServiceDeps{
		Log:       log,
		Incidents: reposet.Incident,
		Mirror:    reposet.Reaction,
		Counter:   clients.Counter,
		Metrics:   metrics,
	})

	return Services{
		IncidentAggregate: aggregate,
		Incident:          incidentService,
		Reaction:          reactionService,
		Sweeper:           sweeper.New(log, incidentService, cfg.SweepInterval),
	}
}
