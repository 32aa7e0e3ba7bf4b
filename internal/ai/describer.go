// Package ai turns current conditions into a short natural-language summary,
// using a language model when one is available and fixed rules otherwise.
package ai

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-map-service/internal/models"
	"github.com/kjstillabower/weather-map-service/internal/observability"
)

var (
	ErrNotConfigured   = errors.New("language model not configured")
	ErrEmptyCompletion = errors.New("empty completion")
)

// Narrator completes a rendered prompt.
type Narrator interface {
	Narrate(ctx context.Context, prompt string) (string, error)
}

// Source tells which branch produced a Description.
type Source string

const (
	SourceAI        Source = "ai"
	SourceRuleBased Source = "rule_based"
)

// Description is the outcome of Describe.
type Description struct {
	Source Source
	Text   string
}

// Describer produces descriptions. Narrator failures select the rule-based
// branch and are never returned.
type Describer struct {
	narrator Narrator
	logger   *zap.Logger
}

// NewDescriber returns a Describer. A nil narrator always uses the rules.
func NewDescriber(narrator Narrator, logger *zap.Logger) *Describer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Describer{narrator: narrator, logger: logger}
}

// Describe returns a description of snap.
func (d *Describer) Describe(ctx context.Context, snap models.WeatherSnapshot) Description {
	desc, err := d.narrate(ctx, snap)
	if err != nil {
		level := d.logger.Warn
		if errors.Is(err, ErrNotConfigured) {
			level = d.logger.Debug
		}
		level("ai description unavailable, using rule-based fallback",
			zap.String("location", snap.Location.Name),
			zap.String("category", string(categorize(err))),
			zap.Error(err))
		desc = Description{Source: SourceRuleBased, Text: RuleBased(snap)}
	}
	observability.DescriptionsTotal.WithLabelValues(string(desc.Source)).Inc()
	return desc
}

func (d *Describer) narrate(ctx context.Context, snap models.WeatherSnapshot) (Description, error) {
	if d.narrator == nil {
		return Description{}, ErrNotConfigured
	}
	prompt, err := RenderPrompt(snap)
	if err != nil {
		return Description{}, err
	}
	text, err := d.narrator.Narrate(ctx, prompt)
	if err != nil {
		return Description{}, err
	}
	return Description{Source: SourceAI, Text: text}, nil
}
