// Package categorizer suggests an asset category for an unknown hardware
// model by asking a generative model to pick from a fixed list.
package categorizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/logging"
)

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// breakerThreshold is the number of consecutive failures that opens the breaker.
const breakerThreshold = 3

// Categorizer turns a model name into a category label. It never fails:
// any problem yields the default category.
type Categorizer struct {
	gen        Generator
	categories []string
	fallback   string
	timeout    time.Duration
	cb         *gobreaker.CircuitBreaker[string]
}

// Option configures a Categorizer.
type Option func(*Categorizer)

// WithCategories sets the allowed labels. Responses outside the list fall back.
func WithCategories(categories ...string) Option {
	return func(c *Categorizer) {
		c.categories = nil
		for _, cat := range categories {
			if cat = strings.TrimSpace(cat); cat != "" {
				c.categories = append(c.categories, cat)
			}
		}
	}
}

// WithDefault sets the fallback category.
func WithDefault(category string) Option {
	return func(c *Categorizer) {
		if category != "" {
			c.fallback = category
		}
	}
}

// WithTimeout bounds each generator call.
func WithTimeout(d time.Duration) Option {
	return func(c *Categorizer) {
		c.timeout = d
	}
}

// New creates a Categorizer. A nil gen always returns the default.
func New(gen Generator, opts ...Option) *Categorizer {
	c := &Categorizer{
		gen:      gen,
		fallback: constants.DefaultCategory,
		timeout:  constants.CategorizerTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "categorizer",
		Timeout: 5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Categorizer breaker state changed")
		},
	})
	return c
}

// Default returns the fallback category.
func (c *Categorizer) Default() string {
	return c.fallback
}

// Categories returns the allowed labels.
func (c *Categorizer) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Suggest returns a category label for modelName.
func (c *Categorizer) Suggest(ctx context.Context, modelName string) string {
	logger := logging.FromContext(ctx).With().Str("model", modelName).Logger()
	if c.gen == nil || strings.TrimSpace(modelName) == "" {
		return c.fallback
	}

	text, err := c.cb.Execute(func() (string, error) {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return c.gen.Generate(callCtx, Prompt(modelName, c.categories))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			logger.Debug().Msg("Categorizer breaker open, using default category")
		} else {
			logger.Warn().Err(err).Str("default", c.fallback).Msg("Category suggestion failed")
		}
		return c.fallback
	}

	label, ok := c.parse(text)
	if !ok {
		logger.Warn().Str("response", text).Str("default", c.fallback).Msg("Unusable category suggestion")
		return c.fallback
	}
	logger.Debug().Str("category", label).Msg("Category suggested")
	return label
}

// Prompt builds the categorization prompt.
func Prompt(modelName string, categories []string) string {
	return fmt.Sprintf("Given the following technology model, Model: %s select the most appropriate category from this list:\n%s\n",
		modelName, strings.Join(categories, ", "))
}

// parse extracts the label from text and checks it against the list.
func (c *Categorizer) parse(text string) (string, bool) {
	label := ExtractLabel(text)
	if label == "" {
		return "", false
	}
	if len(c.categories) == 0 {
		return label, true
	}
	for _, cat := range c.categories {
		if strings.EqualFold(cat, label) {
			return cat, true
		}
	}
	return "", false
}

// ExtractLabel returns the text inside the first ** pair when present, else
// the first non-empty line, stripped of emphasis markers and punctuation.
func ExtractLabel(text string) string {
	text = strings.TrimSpace(text)
	if parts := strings.SplitN(text, "**", 3); len(parts) == 3 {
		text = parts[1]
	} else {
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				text = line
				break
			}
		}
	}
	text = strings.Trim(text, " \t\r\n*_`\"'")
	text = strings.TrimRight(text, ".,;:!")
	return strings.TrimSpace(text)
}
