package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audience is the population an experiment targets
type Audience string

const (
	AudienceAll       Audience = "all"
	AudienceNew       Audience = "new_users"
	AudienceReturning Audience = "returning_users"
	AudiencePremium   Audience = "premium_users"
)

// ExperimentStatus is derived from the experiment window, never stored
type ExperimentStatus string

const (
	StatusScheduled ExperimentStatus = "scheduled"
	StatusActive    ExperimentStatus = "active"
	StatusCompleted ExperimentStatus = "completed"
)

// Experiment is an A/B test with weighted variants
type Experiment struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Description    string    `json:"description" yaml:"description"`
	Variants       []Variant `json:"variants" yaml:"variants"`
	IsActive       bool      `json:"isActive" yaml:"active"`
	StartDate      time.Time `json:"startDate" yaml:"start_date"`
	EndDate        time.Time `json:"endDate" yaml:"end_date"`
	TargetAudience Audience  `json:"targetAudience" yaml:"target_audience"`
	Metrics        []string  `json:"metrics" yaml:"metrics"`
}

// Status reports where now falls relative to the experiment window
func (e *Experiment) Status(now time.Time) ExperimentStatus {
	if now.Before(e.StartDate) {
		return StatusScheduled
	}
	if now.After(e.EndDate) {
		return StatusCompleted
	}
	return StatusActive
}

// TotalWeight sums variant weights
func (e *Experiment) TotalWeight() float64 {
	total := 0.0
	for _, v := range e.Variants {
		total += v.Weight
	}
	return total
}

// Variant finds a variant by ID
func (e *Experiment) Variant(id string) (*Variant, bool) {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return &e.Variants[i], true
		}
	}
	return nil, false
}

// Variant is one arm of an experiment. Weight is a percentage (0-100).
type Variant struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Weight      float64        `json:"weight" yaml:"weight"`
	Config      map[string]any `json:"config" yaml:"config"`
}

// EventType classifies a recorded interaction
type EventType string

const (
	EventView       EventType = "view"
	EventClick      EventType = "click"
	EventConversion EventType = "conversion"
	EventEngagement EventType = "engagement"
)

// Valid reports whether t is a known event type
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventClick, EventConversion, EventEngagement:
		return true
	}
	return false
}

// Event is a single interaction recorded against a variant
type Event struct {
	Type      EventType      `json:"type"`
	Element   string         `json:"element,omitempty"`
	Value     *float64       `json:"value,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventRecord collects every event of one user in one experiment
type EventRecord struct {
	ExperimentID string    `json:"experimentId"`
	VariantID    string    `json:"variantId"`
	UserID       string    `json:"userId"`
	Timestamp    time.Time `json:"timestamp"`
	Events       []Event   `json:"events"`
}

// VariantResult aggregates the records of one variant
type VariantResult struct {
	Users          int               `json:"users"`
	Events         map[EventType]int `json:"events"`
	ConversionRate decimal.Decimal   `json:"conversionRate"`
}

// TotalEvents sums the per-type counts
func (r VariantResult) TotalEvents() int {
	total := 0
	for _, n := range r.Events {
		total += n
	}
	return total
}

// ExperimentResults maps variant ID to its aggregate
type ExperimentResults struct {
	Variants map[string]VariantResult `json:"variants"`
}

// ExperimentSummary is the dashboard roll-up over active experiments
type ExperimentSummary struct {
	ActiveTests           int             `json:"activeTests"`
	TotalUsers            int             `json:"totalUsers"`
	AverageConversionRate decimal.Decimal `json:"averageConversionRate"`
	TotalEvents           int             `json:"totalEvents"`
}
