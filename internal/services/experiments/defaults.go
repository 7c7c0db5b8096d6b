package experiments

import (
	"time"

	"github.com/findosh/agriconnect/internal/models"
)

const defaultWindow = 30 * 24 * time.Hour

// DefaultExperiments is the built-in catalog, running for 30 days from start
func DefaultExperiments(start time.Time) []models.Experiment {
	end := start.Add(defaultWindow)
	return []models.Experiment{
		{
			ID:          "hero-cta-test",
			Name:        "Hero Section CTA Button",
			Description: "Test different CTA button texts and colors",
			Variants: []models.Variant{
				{
					ID:          "control",
					Name:        "Control (Default)",
					Description: "Original green CTA button",
					Weight:      50,
					Config: map[string]any{
						"buttonText":  "התחל עכשיו",
						"buttonColor": "emerald",
						"buttonSize":  "lg",
					},
				},
				{
					ID:          "variant-a",
					Name:        "Variant A - Urgency",
					Description: "Red button with urgency text",
					Weight:      25,
					Config: map[string]any{
						"buttonText":  "התחל עכשיו - מוגבל!",
						"buttonColor": "red",
						"buttonSize":  "lg",
						"showBadge":   true,
						"badgeText":   "חדש!",
					},
				},
				{
					ID:          "variant-b",
					Name:        "Variant B - Benefit",
					Description: "Blue button with benefit text",
					Weight:      25,
					Config: map[string]any{
						"buttonText":  "הגדל תפוקה ב-300%",
						"buttonColor": "blue",
						"buttonSize":  "lg",
						"showIcon":    true,
						"icon":        "trending-up",
					},
				},
			},
			IsActive:       true,
			StartDate:      start,
			EndDate:        end,
			TargetAudience: models.AudienceAll,
			Metrics:        []string{"click", "conversion", "engagement"},
		},
		{
			ID:          "pricing-layout-test",
			Name:        "Pricing Section Layout",
			Description: "Test different pricing card layouts",
			Variants: []models.Variant{
				{
					ID:          "control",
					Name:        "Control (3 Cards)",
					Description: "Original 3-card horizontal layout",
					Weight:      50,
					Config: map[string]any{
						"layout":       "horizontal",
						"cardCount":    3,
						"showPopular":  true,
						"popularIndex": 1,
					},
				},
				{
					ID:          "variant-a",
					Name:        "Variant A - Vertical",
					Description: "Vertical stacked layout",
					Weight:      25,
					Config: map[string]any{
						"layout":         "vertical",
						"cardCount":      3,
						"showPopular":    true,
						"popularIndex":   1,
						"showComparison": true,
					},
				},
				{
					ID:          "variant-b",
					Name:        "Variant B - 2 Cards",
					Description: "Simplified 2-card layout",
					Weight:      25,
					Config: map[string]any{
						"layout":         "horizontal",
						"cardCount":      2,
						"showPopular":    false,
						"showComparison": false,
						"highlightFree":  true,
					},
				},
			},
			IsActive:       true,
			StartDate:      start,
			EndDate:        end,
			TargetAudience: models.AudienceAll,
			Metrics:        []string{"view", "click", "conversion"},
		},
		{
			ID:          "chatbot-trigger-test",
			Name:        "ChatBot Trigger Position",
			Description: "Test different ChatBot trigger positions and styles",
			Variants: []models.Variant{
				{
					ID:          "control",
					Name:        "Control (Bottom Left)",
					Description: "Original bottom-left floating button",
					Weight:      50,
					Config: map[string]any{
						"position":  "bottom-left",
						"style":     "floating",
						"size":      "large",
						"animation": "pulse",
					},
				},
				{
					ID:          "variant-a",
					Name:        "Variant A - Bottom Right",
					Description: "Bottom-right with different animation",
					Weight:      25,
					Config: map[string]any{
						"position":  "bottom-right",
						"style":     "floating",
						"size":      "large",
						"animation": "bounce",
					},
				},
				{
					ID:          "variant-b",
					Name:        "Variant B - Top Banner",
					Description: "Top banner with CTA",
					Weight:      25,
					Config: map[string]any{
						"position":  "top-banner",
						"style":     "banner",
						"size":      "medium",
						"animation": "slide-down",
						"showText":  true,
						"text":      "שאל את AgriBot!",
					},
				},
			},
			IsActive:       true,
			StartDate:      start,
			EndDate:        end,
			TargetAudience: models.AudienceAll,
			Metrics:        []string{"view", "click", "engagement"},
		},
	}
}
