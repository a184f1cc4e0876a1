package app

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/netpad/api/internal/metrics"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
)

// scheduleRefreshInterval is how often the scanner reconciles cron entries
// with the active workflow set.
const scheduleRefreshInterval = time.Minute

// ScheduleScanner fires executions for active workflows with schedule
// trigger nodes. Each schedule trigger's cron spec becomes a cron entry;
// the entry set is reconciled periodically so activating, pausing, or
// editing a workflow takes effect without a restart.
type ScheduleScanner struct {
	workflowRepo workflow.Repository
	executions   *ExecutionService
	cron         *cron.Cron
	logger       *logger.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID // workflowID/nodeKey -> entry
	specs   map[string]string       // workflowID/nodeKey -> cron spec
	cancel  context.CancelFunc
}

// NewScheduleScanner creates a new ScheduleScanner.
func NewScheduleScanner(workflowRepo workflow.Repository, executions *ExecutionService, log *logger.Logger) *ScheduleScanner {
	return &ScheduleScanner{
		workflowRepo: workflowRepo,
		executions:   executions,
		cron:         cron.New(),
		logger:       log.With("service", "schedule_scanner"),
		entries:      map[string]cron.EntryID{},
		specs:        map[string]string{},
	}
}

// Start begins scheduling. It reconciles immediately, then every
// scheduleRefreshInterval until Stop is called.
func (s *ScheduleScanner) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	go func() {
		s.refresh(ctx)
		ticker := time.NewTicker(scheduleRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refresh(ctx)
			}
		}
	}()

	s.logger.Info("schedule scanner started")
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *ScheduleScanner) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.logger.Info("schedule scanner stopped")
}

// refresh reconciles cron entries with the current set of active
// workflows carrying schedule triggers.
func (s *ScheduleScanner) refresh(ctx context.Context) {
	workflows, err := s.workflowRepo.ListActiveWithScheduleTriggers(ctx)
	if err != nil {
		s.logger.Error("failed to load scheduled workflows", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	for _, w := range workflows {
		for _, node := range w.Nodes {
			if node.Type != workflow.NodeTypeScheduleTrigger {
				continue
			}
			spec := node.Schedule()
			if spec == "" {
				continue
			}

			key := w.ID.String() + "/" + node.NodeKey
			seen[key] = true

			// Re-register when the spec changed.
			if existing, ok := s.specs[key]; ok {
				if existing == spec {
					continue
				}
				s.cron.Remove(s.entries[key])
				delete(s.entries, key)
				delete(s.specs, key)
			}

			entryID, err := s.cron.AddFunc(spec, s.fireFunc(w.OrganizationID, w.ID, node.NodeKey))
			if err != nil {
				s.logger.Warn("invalid schedule spec",
					"workflow_id", w.ID.String(),
					"node_key", node.NodeKey,
					"spec", spec,
					"error", err,
				)
				continue
			}
			s.entries[key] = entryID
			s.specs[key] = spec
			s.logger.Info("schedule registered",
				"workflow_id", w.ID.String(),
				"node_key", node.NodeKey,
				"spec", spec,
			)
		}
	}

	// Drop entries for workflows no longer active or edited away.
	for key, entryID := range s.entries {
		if !seen[key] {
			s.cron.Remove(entryID)
			delete(s.entries, key)
			delete(s.specs, key)
			s.logger.Info("schedule removed", "key", key)
		}
	}
}

// fireFunc returns the cron callback that admits a scheduled execution.
// Admission rejections (queue full, quota exhausted) are expected here and
// logged rather than retried; the next tick will try again.
func (s *ScheduleScanner) fireFunc(orgID, workflowID shared.ID, nodeKey string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, err := s.executions.Execute(ctx, ExecuteWorkflowInput{
			OrganizationID: orgID,
			WorkflowID:     workflowID,
			TriggerType:    "schedule",
			TriggerSource:  nodeKey,
		})
		if err != nil {
			metrics.ScheduledTriggersTotal.WithLabelValues(orgID.String(), "rejected").Inc()
			s.logger.Warn("scheduled execution not admitted",
				"workflow_id", workflowID.String(),
				"node_key", nodeKey,
				"error", err,
			)
			return
		}
		metrics.ScheduledTriggersTotal.WithLabelValues(orgID.String(), "fired").Inc()
	}
}
