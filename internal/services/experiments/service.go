// Package experiments assigns users to A/B test variants and aggregates the
// events recorded against them.
package experiments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/findosh/agriconnect/internal/models"
	"github.com/findosh/agriconnect/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Storage keys owned by the experiment service
const (
	KeyVariants = "agriconnect-ab-variants"
	KeyResults  = "agriconnect-ab-results"
)

var ErrInvalidExperiment = errors.New("invalid experiment")

// Options tunes a Service. Zero values select defaults.
type Options struct {
	Now func() time.Time
	// Rand returns a uniform value in [0,1)
	Rand   func() float64
	Logger *zap.Logger
	// SkipDefaults leaves the catalog empty instead of seeding the built-in tests
	SkipDefaults bool
}

// Service owns the experiment catalog, the user assignments and the event records
type Service struct {
	store  storage.Store
	now    func() time.Time
	rand   func() float64
	logger *zap.Logger

	mu          sync.Mutex
	tests       map[string]models.Experiment
	order       []string
	assignments map[string]map[string]string // userID -> experimentID -> variantID
	records     []*models.EventRecord
}

// NewService seeds the built-in catalog and loads persisted assignments and records
func NewService(ctx context.Context, store storage.Store, opts Options) *Service {
	s := &Service{
		store:       store,
		now:         opts.Now,
		rand:        opts.Rand,
		logger:      opts.Logger,
		tests:       make(map[string]models.Experiment),
		assignments: make(map[string]map[string]string),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rand == nil {
		s.rand = rand.Float64
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	if !opts.SkipDefaults {
		for _, exp := range DefaultExperiments(s.now()) {
			if err := s.AddTest(exp); err != nil {
				s.logger.Error("invalid built-in experiment", zap.String("experiment", exp.ID), zap.Error(err))
			}
		}
	}

	s.loadAssignments(ctx)
	s.loadRecords(ctx)
	return s
}

// AddTest inserts or replaces an experiment in the catalog.
// Weights that do not sum to 100 are accepted; draws past the total fall
// back to the first variant.
func (s *Service) AddTest(exp models.Experiment) error {
	if exp.ID == "" {
		return fmt.Errorf("%w: id required", ErrInvalidExperiment)
	}
	if len(exp.Variants) == 0 {
		return fmt.Errorf("%w: %s has no variants", ErrInvalidExperiment, exp.ID)
	}
	seen := make(map[string]bool, len(exp.Variants))
	for _, v := range exp.Variants {
		if v.ID == "" {
			return fmt.Errorf("%w: %s has a variant without id", ErrInvalidExperiment, exp.ID)
		}
		if seen[v.ID] {
			return fmt.Errorf("%w: %s has duplicate variant %s", ErrInvalidExperiment, exp.ID, v.ID)
		}
		seen[v.ID] = true
		if v.Weight < 0 || v.Weight > 100 {
			return fmt.Errorf("%w: %s variant %s weight %v out of range", ErrInvalidExperiment, exp.ID, v.ID, v.Weight)
		}
	}
	if total := exp.TotalWeight(); total != 100 {
		s.logger.Warn("variant weights do not sum to 100",
			zap.String("experiment", exp.ID),
			zap.Float64("total", total))
	}

	exp = cloneExperiment(exp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tests[exp.ID]; !exists {
		s.order = append(s.order, exp.ID)
	}
	s.tests[exp.ID] = exp
	return nil
}

// GetVariant returns the variant assigned to the user, assigning one on first
// use. It reports false for unknown or inactive experiments.
func (s *Service) GetVariant(ctx context.Context, experimentID, userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variantLocked(ctx, experimentID, userID)
}

// GetVariantConfig returns the config of the user's variant
func (s *Service) GetVariantConfig(ctx context.Context, experimentID, userID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	variantID, ok := s.variantLocked(ctx, experimentID, userID)
	if !ok {
		return nil, false
	}
	exp := s.tests[experimentID]
	variant, ok := exp.Variant(variantID)
	if !ok || variant.Config == nil {
		return nil, false
	}
	return cloneConfig(variant.Config), true
}

// RecordEvent appends event to the user's record for the experiment.
// Events for unknown or inactive experiments are dropped.
func (s *Service) RecordEvent(ctx context.Context, experimentID, userID string, event models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	variantID, ok := s.variantLocked(ctx, experimentID, userID)
	if !ok {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	var record *models.EventRecord
	for _, r := range s.records {
		if r.ExperimentID == experimentID && r.UserID == userID {
			record = r
			break
		}
	}
	if record == nil {
		record = &models.EventRecord{
			ExperimentID: experimentID,
			VariantID:    variantID,
			UserID:       userID,
			Timestamp:    s.now(),
		}
		s.records = append(s.records, record)
	}
	record.Events = append(record.Events, event)

	s.saveRecords(ctx)
}

// GetTestResults aggregates the records of each catalog variant.
// Users counts records, so assigned users without events are not counted.
func (s *Service) GetTestResults(experimentID string) models.ExperimentResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultsLocked(experimentID)
}

func (s *Service) resultsLocked(experimentID string) models.ExperimentResults {
	results := models.ExperimentResults{Variants: make(map[string]models.VariantResult)}
	exp, ok := s.tests[experimentID]
	if !ok {
		return results
	}

	for _, variant := range exp.Variants {
		vr := models.VariantResult{
			Events:         make(map[models.EventType]int),
			ConversionRate: decimal.Zero,
		}
		for _, r := range s.records {
			if r.ExperimentID != experimentID || r.VariantID != variant.ID {
				continue
			}
			vr.Users++
			for _, e := range r.Events {
				vr.Events[e.Type]++
			}
		}
		if views := vr.Events[models.EventView]; views > 0 {
			conversions := int64(vr.Events[models.EventConversion])
			vr.ConversionRate = decimal.NewFromInt(conversions*100).DivRound(decimal.NewFromInt(int64(views)), 2)
		}
		results.Variants[variant.ID] = vr
	}
	return results
}

// GetActiveTests returns active experiments in catalog order
func (s *Service) GetActiveTests() []models.Experiment {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]models.Experiment, 0, len(s.order))
	for _, id := range s.order {
		if exp := s.tests[id]; exp.IsActive {
			active = append(active, cloneExperiment(exp))
		}
	}
	return active
}

// Tests returns the whole catalog in insertion order
func (s *Service) Tests() []models.Experiment {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]models.Experiment, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, cloneExperiment(s.tests[id]))
	}
	return all
}

// Test looks up a single experiment
func (s *Service) Test(experimentID string) (models.Experiment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.tests[experimentID]
	if !ok {
		return models.Experiment{}, false
	}
	return cloneExperiment(exp), true
}

// Status derives the experiment's window status from the service clock
func (s *Service) Status(exp models.Experiment) models.ExperimentStatus {
	return exp.Status(s.now())
}

// Summary rolls up the active experiments for the dashboard
func (s *Service) Summary() models.ExperimentSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := models.ExperimentSummary{AverageConversionRate: decimal.Zero}
	rateSum := decimal.Zero
	for _, id := range s.order {
		exp := s.tests[id]
		if !exp.IsActive {
			continue
		}
		summary.ActiveTests++

		results := s.resultsLocked(id)
		testRate := decimal.Zero
		for _, vr := range results.Variants {
			summary.TotalUsers += vr.Users
			summary.TotalEvents += vr.TotalEvents()
			testRate = testRate.Add(vr.ConversionRate)
		}
		if n := len(results.Variants); n > 0 {
			rateSum = rateSum.Add(testRate.Div(decimal.NewFromInt(int64(n))))
		}
	}
	if summary.ActiveTests > 0 {
		summary.AverageConversionRate = rateSum.Div(decimal.NewFromInt(int64(summary.ActiveTests))).Round(2)
	}
	return summary
}

func (s *Service) variantLocked(ctx context.Context, experimentID, userID string) (string, bool) {
	exp, ok := s.tests[experimentID]
	if !ok || !exp.IsActive {
		return "", false
	}

	userVariants := s.assignments[userID]
	if variantID, ok := userVariants[experimentID]; ok {
		return variantID, true
	}

	variant := s.assign(exp)
	if userVariants == nil {
		userVariants = make(map[string]string)
		s.assignments[userID] = userVariants
	}
	userVariants[experimentID] = variant.ID
	s.saveAssignments(ctx)

	s.logger.Debug("assigned variant",
		zap.String("experiment", experimentID),
		zap.String("user", userID),
		zap.String("variant", variant.ID))
	return variant.ID, true
}

// assign draws a variant by cumulative weight
func (s *Service) assign(exp models.Experiment) models.Variant {
	draw := s.rand() * 100
	cumulative := 0.0
	for _, v := range exp.Variants {
		cumulative += v.Weight
		if cumulative >= draw {
			return v
		}
	}
	return exp.Variants[0]
}

func (s *Service) loadAssignments(ctx context.Context) {
	raw, ok, err := s.store.Get(ctx, KeyVariants)
	if err != nil {
		s.logger.Warn("error loading user variants", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	var data map[string]map[string]string
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.logger.Warn("error loading user variants", zap.Error(err))
		return
	}
	for userID, variants := range data {
		if variants != nil {
			s.assignments[userID] = variants
		}
	}
}

func (s *Service) loadRecords(ctx context.Context) {
	raw, ok, err := s.store.Get(ctx, KeyResults)
	if err != nil {
		s.logger.Warn("error loading results", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	var records []*models.EventRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn("error loading results", zap.Error(err))
		return
	}
	for _, r := range records {
		if r != nil {
			s.records = append(s.records, r)
		}
	}
}

// saveAssignments and saveRecords outlive the caller's ctx: the in-memory
// state has already changed and must reach the store.
func (s *Service) saveAssignments(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	data, err := json.Marshal(s.assignments)
	if err == nil {
		err = s.store.Set(ctx, KeyVariants, string(data))
	}
	if err != nil {
		s.logger.Error("error saving user variants", zap.Error(err))
	}
}

func (s *Service) saveRecords(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	data, err := json.Marshal(s.records)
	if err == nil {
		err = s.store.Set(ctx, KeyResults, string(data))
	}
	if err != nil {
		s.logger.Error("error saving results", zap.Error(err))
	}
}

// cloneExperiment copies the variants and their configs so callers never
// share the catalog's maps
func cloneExperiment(exp models.Experiment) models.Experiment {
	variants := make([]models.Variant, len(exp.Variants))
	for i, v := range exp.Variants {
		v.Config = cloneConfig(v.Config)
		variants[i] = v
	}
	exp.Variants = variants
	exp.Metrics = slices.Clone(exp.Metrics)
	return exp
}

func cloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneConfig(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
