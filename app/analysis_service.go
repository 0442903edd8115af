package app

import (
	"context"
	"fmt"
	"time"

	"abfunnel/domain/core"
	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"
	"abfunnel/internal"
	"abfunnel/internal/cleaning"
	"abfunnel/internal/compare"
	"abfunnel/internal/errors"
	"abfunnel/internal/kpi"
	"abfunnel/internal/segment"
	"abfunnel/internal/session"
	"abfunnel/ports"
)

// AnalysisRequest carries the knobs of one run
type AnalysisRequest struct {
	Params          stats.AnalysisParams
	StrictVariation bool
	CompareRules    bool
}

// DefaultRequest returns the request used when nothing is configured
func DefaultRequest() AnalysisRequest {
	return AnalysisRequest{
		Params: stats.AnalysisParams{
			Alpha:               stats.DefaultAlpha,
			LiftThreshold:       compare.DefaultConfig().LiftThreshold,
			TenureThresholdDays: kpi.DefaultTenureThresholdDays,
			SampleSize:          session.DefaultSampleSize,
		},
		StrictVariation: true,
	}
}

// Dataset is the cleaned input of a run, loaded once and shared by every stage
type Dataset struct {
	Events    []funnel.Event
	Profiles  []funnel.ClientProfile
	Conflicts []string
	Fills     cleaning.FillReport
	Hash      core.Hash
}

// AnalysisService orchestrates loading, cleaning and every analysis stage
type AnalysisService struct {
	events      ports.EventSource
	profiles    ports.ProfileSource
	assignments ports.AssignmentSource
	stageRunner *StageRunner
	logger      *internal.Logger
	now         func() time.Time
}

// NewAnalysisService creates the pipeline. Profiles and assignments are optional.
func NewAnalysisService(events ports.EventSource, profiles ports.ProfileSource, assignments ports.AssignmentSource, logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &AnalysisService{
		events:      events,
		profiles:    profiles,
		assignments: assignments,
		stageRunner: NewStageRunner(logger),
		logger:      logger,
		now:         time.Now,
	}
}

// Load reads every source and applies cleaning. With strict set, a client observed
// under two arms aborts the load; otherwise the first arm becomes canonical.
func (s *AnalysisService) Load(ctx context.Context, strict bool) (*Dataset, error) {
	ds := &Dataset{}

	var raw []funnel.Event
	if err := s.stageRunner.Run(ctx, "load", func() error {
		var err error
		if raw, err = s.events.LoadEvents(ctx); err != nil {
			return err
		}
		if s.assignments != nil {
			roster, err := s.assignments.LoadAssignments(ctx)
			if err != nil {
				return err
			}
			raw = cleaning.AssignVariations(raw, roster)
		}
		if s.profiles != nil {
			if ds.Profiles, err = s.profiles.LoadProfiles(ctx); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.stageRunner.Run(ctx, "clean", func() error {
		events := cleaning.CleanEvents(raw)
		if dropped := len(raw) - len(events); dropped > 0 {
			s.logger.Info("Dropped %d duplicate events", dropped)
		}

		ds.Conflicts = cleaning.ValidateVariations(events)
		if len(ds.Conflicts) > 0 {
			if strict {
				return errors.WithCode(errors.CodeInvalidInput,
					fmt.Errorf("%w: %d clients, first %s", core.ErrVariationConflict, len(ds.Conflicts), ds.Conflicts[0]))
			}
			s.logger.Warn("%d clients observed in more than one variation; keeping first observed arm", len(ds.Conflicts))
		}
		ds.Events = cleaning.CanonicalizeVariations(events)

		ds.Profiles, ds.Fills = cleaning.CleanProfiles(ds.Profiles)
		ds.Hash = hashEvents(ds.Events)
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Dataset ready: %d events, %d clients, %d profiles", len(ds.Events), len(funnel.DistinctClients(ds.Events)), len(ds.Profiles))
	return ds, nil
}

// Run executes the full analysis and returns a report that is not modified afterwards
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*stats.AnalysisReport, error) {
	ds, err := s.Load(ctx, req.StrictVariation)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, ds, req)
}

// Analyze runs every analysis stage over an already loaded dataset
func (s *AnalysisService) Analyze(ctx context.Context, ds *Dataset, req AnalysisRequest) (*stats.AnalysisReport, error) {
	p := req.Params
	report := &stats.AnalysisReport{
		RunID:              core.NewRunID(),
		GeneratedAt:        s.now().UTC(),
		DatasetHash:        ds.Hash,
		Params:             p,
		Events:             len(ds.Events),
		Clients:            len(funnel.DistinctClients(ds.Events)),
		VariationConflicts: ds.Conflicts,
	}
	if report.Events == 0 {
		return nil, errors.WithCode(errors.CodeInvalidInput, core.ErrEmptyPopulation)
	}

	events, err := s.selectSessions(ctx, ds.Events, p.SessionRule)
	if err != nil {
		return nil, err
	}

	cfg := compare.Config{Alpha: p.Alpha, LiftThreshold: p.LiftThreshold}
	if err := s.stageRunner.Run(ctx, "kpis", func() error {
		report.Comparison = kpi.CompareArms(events)
		report.StepReachRates = kpi.StepReachRates(events)
		report.VariationConversion = kpi.VariationConversion(events)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.stageRunner.Run(ctx, "hypothesis-tests", func() error {
		report.RateTest = compare.CompareCompletionRate(events, cfg)
		report.TimeTest = compare.CompareCompletionTime(events, cfg)
		if !report.RateTest.Available() {
			s.logger.Warn("Completion-rate test not available: %s", report.RateTest.Reason)
		}
		if !report.TimeTest.Available() {
			s.logger.Warn("Completion-time test not available: %s", report.TimeTest.Reason)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.stageRunner.Run(ctx, "behavior", func() error {
		snapshots := kpi.Snapshots(events, ds.Profiles, p.TenureThresholdDays)
		report.Behavior = kpi.BehaviorMetrics(snapshots)
		report.Primary = kpi.PrimarySegments(snapshots)
		return nil
	}); err != nil {
		return nil, err
	}

	if req.CompareRules {
		// rules are compared on the unselected table; selection would erase the difference
		if err := s.stageRunner.Run(ctx, "session-rules", func() error {
			rules, err := session.CompareRules(ds.Events, p.SampleSize, p.Seed)
			if err != nil {
				return err
			}
			report.SessionRules = rules
			return nil
		}); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Analysis %s complete: lift %.3f (%s), rate test %s, time test %s",
		report.RunID, report.Comparison.Lift, report.Comparison.Status, report.RateTest.Verdict, report.TimeTest.Verdict)
	return report, nil
}

// selectSessions keeps one session per client when a rule is configured
func (s *AnalysisService) selectSessions(ctx context.Context, events []funnel.Event, ruleName string) ([]funnel.Event, error) {
	selected := events
	err := s.stageRunner.Run(ctx, "session-selection", func() error {
		if ruleName == "" {
			return nil
		}
		rule, err := session.ParseRule(ruleName)
		if err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, err)
		}
		if selected, err = session.SelectPerClient(events, rule); err != nil {
			return err
		}
		s.logger.Info("Applied %s: %d events kept", rule.Label(), len(selected))
		return nil
	})
	return selected, err
}

// KPIs loads the dataset and returns only the per-arm KPI packs and lift
func (s *AnalysisService) KPIs(ctx context.Context, req AnalysisRequest) (stats.ArmComparison, error) {
	ds, err := s.Load(ctx, req.StrictVariation)
	if err != nil {
		return stats.ArmComparison{}, err
	}
	events, err := s.selectSessions(ctx, ds.Events, req.Params.SessionRule)
	if err != nil {
		return stats.ArmComparison{}, err
	}
	return kpi.CompareArms(events), nil
}

// Snapshots loads the dataset and builds one snapshot per client
func (s *AnalysisService) Snapshots(ctx context.Context, req AnalysisRequest) ([]funnel.ClientSnapshot, error) {
	ds, err := s.Load(ctx, req.StrictVariation)
	if err != nil {
		return nil, err
	}
	return kpi.Snapshots(ds.Events, ds.Profiles, req.Params.TenureThresholdDays), nil
}

// Segment loads the dataset and segments the clients seen at selector ("all" or a step)
func (s *AnalysisService) Segment(ctx context.Context, req AnalysisRequest, selector string, firstOnly bool) (*segment.Result, error) {
	ds, err := s.Load(ctx, req.StrictVariation)
	if err != nil {
		return nil, err
	}
	var res *segment.Result
	err = s.stageRunner.Run(ctx, "segment", func() error {
		var err error
		res, err = segment.Segment(ds.Events, ds.Profiles, selector, segment.Options{FirstOnly: firstOnly, Alpha: req.Params.Alpha})
		return err
	})
	return res, err
}

// SessionRules loads the dataset and compares the three session rules on a sample
func (s *AnalysisService) SessionRules(ctx context.Context, req AnalysisRequest) ([]stats.SessionRuleMetrics, error) {
	ds, err := s.Load(ctx, req.StrictVariation)
	if err != nil {
		return nil, err
	}
	return session.CompareRules(ds.Events, req.Params.SampleSize, req.Params.Seed)
}

// hashEvents fingerprints the cleaned table so two reports can be matched to the same input
func hashEvents(events []funnel.Event) core.Hash {
	lines := make([]string, len(events))
	for i, e := range events {
		ts := ""
		if e.HasTime() {
			ts = e.Time.UTC().Format(time.RFC3339Nano)
		}
		lines[i] = fmt.Sprintf("%s|%s|%s|%s|%s|%s", e.ClientID, e.VisitorID, e.VisitID, e.Step, ts, e.Variation)
	}
	return core.HashLines(lines)
}
