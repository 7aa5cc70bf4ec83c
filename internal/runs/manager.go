package runs

import (
	"context"
	"sync"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/collector"
	"github.com/Quicklotz/benchd/internal/controller"
	"github.com/Quicklotz/benchd/internal/errors"
	"github.com/Quicklotz/benchd/internal/logger"
	"github.com/Quicklotz/benchd/internal/safety"
	"github.com/google/uuid"
)

type service struct {
	cfg           Config
	store         RunStore
	collector     collector.Collector
	monitor       safety.Monitor
	controllerCfg controller.Config
	logger        logger.Logger

	mu     sync.Mutex
	active map[uuid.UUID]*activeRun
}

// activeRun keeps what the stop paths need to reach the hardware again.
type activeRun struct {
	station *bench.Station
	outlet  *bench.Outlet
	adapter controller.Adapter
}

func NewManager(cfg Config, store RunStore, col collector.Collector, mon safety.Monitor, controllerCfg controller.Config, log logger.Logger) Manager {
	return &service{
		cfg:           cfg,
		store:         store,
		collector:     col,
		monitor:       mon,
		controllerCfg: controllerCfg,
		logger:        log,
		active:        make(map[uuid.UUID]*activeRun),
	}
}

func (s *service) Start(ctx context.Context, station *bench.Station, outlet *bench.Outlet, profile *bench.Profile) (*bench.TestRun, error) {
	errFactory := errors.New()

	// Adapter resolution fails fast on misconfigured stations, before
	// anything is energized.
	adapter, err := controller.ForStation(station, s.controllerCfg, s.logger)
	if err != nil {
		return nil, err
	}

	if violations := safety.ValidateSafety(station, outlet); len(violations) > 0 {
		return nil, errFactory.WithData(ErrSafetyPreconditions, violations)
	}

	if claimedBy, claimed, err := s.store.ActiveRunForOutlet(ctx, outlet.ID); err != nil {
		return nil, err
	} else if claimed {
		return nil, errFactory.WithData(ErrOutletClaimed, claimedBy.String())
	}

	run := bench.NewTestRun(station.ID, outlet.ID, profile.ID)
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, errFactory.Wrap(ErrCreateFailed, err)
	}

	if err := adapter.TurnOn(ctx, station, outlet); err != nil {
		if _, uerr := s.store.UpdateRunStatus(ctx, run.ID, bench.StatusFailed); uerr != nil {
			s.logger.Error().Err(uerr).Str("run_id", run.ID.String()).Msg("Failed to mark run failed after turn-on failure")
		}
		return nil, errFactory.Wrap(ErrTurnOnFailed, err)
	}

	if _, err := s.store.UpdateRunStatus(ctx, run.ID, bench.StatusInProgress); err != nil {
		return nil, err
	}
	run.Status = bench.StatusInProgress

	// Manual stations have nothing to poll; their readings arrive via
	// the collector's manual record path.
	if station.Controller != bench.ControllerManual {
		if err := s.collector.Start(run.ID, station, outlet, adapter, s.cfg.PollInterval); err != nil {
			adapter.TurnOff(ctx, station, outlet)
			if _, uerr := s.store.UpdateRunStatus(ctx, run.ID, bench.StatusFailed); uerr != nil {
				s.logger.Error().Err(uerr).Str("run_id", run.ID.String()).Msg("Failed to mark run failed after collector start failure")
			}
			return nil, errFactory.Wrap(ErrCollectFailed, err)
		}
	}

	s.monitor.StartMonitoring(run.ID, station, outlet, profile, adapter)

	s.mu.Lock()
	s.active[run.ID] = &activeRun{station: station, outlet: outlet, adapter: adapter}
	s.mu.Unlock()

	s.logger.Info().
		Str("run_id", run.ID.String()).
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Str("category", profile.Category).
		Msg("Test run started")

	return run, nil
}

func (s *service) Complete(ctx context.Context, runID uuid.UUID, result string) error {
	return s.finish(ctx, runID, bench.StatusCompleted, result)
}

func (s *service) Fail(ctx context.Context, runID uuid.UUID, reason string) error {
	return s.finish(ctx, runID, bench.StatusFailed, reason)
}

func (s *service) Cancel(ctx context.Context, runID uuid.UUID) error {
	return s.finish(ctx, runID, bench.StatusAborted, "")
}

// finish is the shared teardown for completion, failure and operator
// cancellation. The monitor stops first so an emergency shutdown cannot
// fire mid-teardown; every later step tolerates having lost a race with
// one that already did.
func (s *service) finish(ctx context.Context, runID uuid.UUID, status bench.RunStatus, result string) error {
	s.mu.Lock()
	active, ok := s.active[runID]
	delete(s.active, runID)
	s.mu.Unlock()

	s.monitor.StopMonitoring(runID)
	collected := s.collector.Stop(runID)

	if ok {
		active.adapter.TurnOff(ctx, active.station, active.outlet)
	}

	updated, err := s.store.UpdateRunStatus(ctx, runID, status)
	if err != nil {
		return err
	}
	if result != "" {
		if err := s.store.SetRunResult(ctx, runID, result); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("run_id", runID.String()).
		Str("status", status.String()).
		Bool("transitioned", updated).
		Int("readings", collected).
		Msg("Test run finished")

	return nil
}

func (s *service) Get(ctx context.Context, runID uuid.UUID) (*bench.TestRun, error) {
	return s.store.GetRun(ctx, runID)
}

func (s *service) Shutdown() {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.Cancel(context.Background(), id); err != nil {
			s.logger.Error().Err(err).Str("run_id", id.String()).Msg("Failed to cancel run during shutdown")
		}
	}
}
