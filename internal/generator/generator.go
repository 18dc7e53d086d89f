// Package generator turns requirement documents into Karate feature text
// through a remote model, a local model, or deterministic synthesis.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/featuregen/internal/analyzer"
	"github.com/yourorg/featuregen/internal/config"
	"github.com/yourorg/featuregen/internal/feature"
	"github.com/yourorg/featuregen/internal/store"
	"github.com/yourorg/featuregen/pkg/types"
)

var (
	// ErrNoRequirement is returned when the requirement text is empty.
	ErrNoRequirement = errors.New("no requirement text provided")
	// ErrModelLoading is returned while the local model is initializing.
	ErrModelLoading = errors.New("local model is still loading, please retry shortly")
)

// Request is one generation request.
type Request struct {
	Requirement string
	APIContext  types.APIContext
	Operation   string
}

// Controller runs the tier chain for each request.
type Controller struct {
	Caps      Capabilities
	Store     store.Store
	OutputDir string
	Logger    *slog.Logger
	Now       func() time.Time

	tiers []Tier
}

// NewController builds the tier chain permitted by caps. The deterministic
// tier is always last.
func NewController(cfg *config.Config, caps Capabilities, st store.Store, logger *slog.Logger) *Controller {
	c := &Controller{Caps: caps, Store: st, OutputDir: cfg.Output.Dir, Logger: logger}
	if caps.RemoteAvailable() && cfg.RemoteConfigured() {
		r := cfg.LLM.Remote
		c.tiers = append(c.tiers, &remoteTier{
			client: &Client{
				BaseURL:     r.BaseURL,
				APIKey:      r.APIKey,
				Model:       r.Model,
				MaxTokens:   r.MaxTokens,
				Temperature: r.Temperature,
				TopP:        r.TopP,
				MaxRetries:  r.MaxRetries,
				HTTPClient:  &http.Client{},
				Logger:      logger,
			},
			timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		})
	}
	if caps.LocalAvailable() {
		l := cfg.LLM.Local
		c.tiers = append(c.tiers, &localTier{
			client: &Client{
				BaseURL:     l.BaseURL,
				Model:       l.Model,
				MaxTokens:   l.MaxTokens,
				Temperature: l.Temperature,
				TopP:        l.TopP,
				HTTPClient:  &http.Client{},
				Logger:      logger,
			},
			contextSize: l.ContextSize,
			timeout:     time.Duration(l.TimeoutSeconds) * time.Second,
		})
	}
	limits := Limits{
		Functional:      cfg.Synth.Functional,
		Validation:      cfg.Synth.Validation,
		BusinessRules:   cfg.Synth.BusinessRules,
		ErrorConditions: cfg.Synth.ErrorConditions,
	}
	c.tiers = append(c.tiers, &synthTier{synth: NewSynthesizer(limits)})
	return c
}

// Tiers returns the names of the configured tiers in order.
func (c *Controller) Tiers() []types.Tier {
	out := make([]types.Tier, 0, len(c.tiers))
	for _, t := range c.tiers {
		out = append(out, t.Name())
	}
	return out
}

// Generate produces feature text for req. Only precondition failures are
// returned; model failures fall through to the next tier.
func (c *Controller) Generate(ctx context.Context, req Request) (*types.GenerationResult, error) {
	logger := c.logger()
	if strings.TrimSpace(req.Requirement) == "" {
		return nil, ErrNoRequirement
	}
	op, err := types.ParseOperation(req.Operation)
	if err != nil {
		return nil, err
	}
	if c.Caps.Local == LocalLoading {
		return nil, ErrModelLoading
	}

	analysis := analyzer.Analyze(req.Requirement)
	prompt := Prompt{
		Requirement: req.Requirement,
		Analysis:    analysis,
		Model:       BuildModelContext(analyzer.EnhanceWith(analysis, req.Requirement), req.APIContext, op),
		APIContext:  req.APIContext,
		Operation:   op,
	}

	var (
		output    string
		used      types.Tier
		attempted int
	)
	for _, t := range c.tierChain() {
		logger.Info("trying generation tier", "tier", t.Name())
		out, err := t.TryGenerate(ctx, prompt)
		if err != nil {
			logger.Warn("generation tier failed", "tier", t.Name(), "kind", ClassifyError(err), "err", err)
			attempted++
			continue
		}
		output, used = out, t.Name()
		break
	}
	label := tierLabel(used, attempted)
	now := c.now()

	header := &strings.Builder{}
	fmt.Fprintf(header, "# Generated using: %s\n", label)
	if c.Caps.Remote != RemoteActive && c.Caps.Remote != RemoteNotConfigured && c.Caps.Remote != "" {
		fmt.Fprintf(header, "# Remote API Status: %s - Using local generation for reliability\n", c.Caps.Remote)
	}
	fmt.Fprintf(header, "# Generation completed at: %s\n\n", now.Format("2006-01-02 15:04:05"))

	res := &types.GenerationResult{
		Output:    header.String() + output,
		Tier:      used,
		TierLabel: label,
		Operation: op,
		CreatedAt: now,
	}
	res.Validation = feature.Validate(res.Output)
	if !res.Validation.IsValid {
		logger.Warn("generated feature has structural errors", "errors", res.Validation.Errors)
	}
	if len(res.Validation.Warnings) > 0 {
		logger.Info("generated feature warnings", "warnings", res.Validation.Warnings)
	}

	c.persist(req, res)
	c.writeReport(analysis, res)
	logger.Info("generation complete", "tier", used, "id", res.ID, "valid", res.Validation.IsValid)
	return res, nil
}

// tierChain guarantees a terminal deterministic tier even for a zero
// Controller.
func (c *Controller) tierChain() []Tier {
	if n := len(c.tiers); n > 0 && c.tiers[n-1].Name() == types.TierDeterministic {
		return c.tiers
	}
	return append(append([]Tier{}, c.tiers...), &synthTier{synth: NewSynthesizer(DefaultLimits)})
}

func tierLabel(t types.Tier, attempted int) string {
	switch t {
	case types.TierRemote:
		return "Remote Model API (Tier 1)"
	case types.TierLocal:
		if attempted > 0 {
			return "Local Model (Tier 2 - Remote Fallback)"
		}
		return "Local Model (Tier 2)"
	}
	if attempted > 0 {
		return "Deterministic Synthesis (Tier 3 - Full Fallback)"
	}
	return "Deterministic Synthesis (Tier 3)"
}

func (c *Controller) persist(req Request, res *types.GenerationResult) {
	if c.Store == nil {
		return
	}
	apiCtx, _ := json.Marshal(req.APIContext)
	rec := &types.GenerationRecord{
		Operation:   string(res.Operation),
		Tier:        res.Tier,
		TierLabel:   res.TierLabel,
		Requirement: req.Requirement,
		APIContext:  string(apiCtx),
		Output:      res.Output,
		Valid:       res.Validation.IsValid,
		Errors:      res.Validation.Errors,
		CreatedAt:   res.CreatedAt.UTC(),
	}
	if err := c.Store.SaveGeneration(rec); err != nil {
		c.logger().Warn("persist generation failed", "err", err)
		return
	}
	res.ID = rec.ID
}

func (c *Controller) writeReport(a analyzer.Analysis, res *types.GenerationResult) {
	if strings.TrimSpace(c.OutputDir) == "" {
		return
	}
	content, err := RenderAnalysisReport(a, res)
	if err != nil {
		c.logger().Warn("render analysis report failed", "err", err)
		return
	}
	if _, err := WriteReport(c.OutputDir, LatestReportName, content); err != nil {
		c.logger().Warn("write analysis report failed", "err", err)
	}
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
