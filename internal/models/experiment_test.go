package models

import (
	"testing"
	"time"
)

func TestExperiment_Status(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	exp := &Experiment{StartDate: start, EndDate: start.Add(30 * 24 * time.Hour)}

	tests := []struct {
		name string
		now  time.Time
		want ExperimentStatus
	}{
		{"before start", start.Add(-time.Minute), StatusScheduled},
		{"at start", start, StatusActive},
		{"midway", start.Add(10 * 24 * time.Hour), StatusActive},
		{"at end", exp.EndDate, StatusActive},
		{"after end", exp.EndDate.Add(time.Second), StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exp.Status(tt.now); got != tt.want {
				t.Errorf("Status(%v) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestExperiment_Variant(t *testing.T) {
	exp := &Experiment{Variants: []Variant{{ID: "control", Weight: 60}, {ID: "b", Weight: 40}}}

	if v, ok := exp.Variant("b"); !ok || v.Weight != 40 {
		t.Errorf("Expected variant b with weight 40, got %+v", v)
	}
	if _, ok := exp.Variant("missing"); ok {
		t.Error("Expected missing variant lookup to fail")
	}
	if exp.TotalWeight() != 100 {
		t.Errorf("Expected total weight 100, got %v", exp.TotalWeight())
	}
}

func TestEventType_Valid(t *testing.T) {
	for _, et := range []EventType{EventView, EventClick, EventConversion, EventEngagement} {
		if !et.Valid() {
			t.Errorf("Expected %s to be valid", et)
		}
	}
	if EventType("purchase").Valid() {
		t.Error("Expected purchase to be invalid")
	}
}

func TestVariantResult_TotalEvents(t *testing.T) {
	r := VariantResult{Events: map[EventType]int{EventView: 4, EventClick: 2}}
	if r.TotalEvents() != 6 {
		t.Errorf("Expected 6, got %d", r.TotalEvents())
	}
}
