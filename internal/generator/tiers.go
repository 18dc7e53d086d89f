package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yourorg/featuregen/internal/analyzer"
	"github.com/yourorg/featuregen/pkg/types"
)

// Prompt is everything a tier may need to produce feature text.
type Prompt struct {
	Requirement string
	Analysis    analyzer.Analysis
	Model       ModelContext
	APIContext  types.APIContext
	Operation   types.Operation
}

// Tier is one generation strategy. Tiers are tried in order until one
// returns output.
type Tier interface {
	Name() types.Tier
	TryGenerate(ctx context.Context, p Prompt) (string, error)
}

// ErrContextOverflow means the prompt does not fit the local model window.
var ErrContextOverflow = errors.New("prompt exceeds local model context")

type remoteTier struct {
	client  *Client
	timeout time.Duration
}

func (t *remoteTier) Name() types.Tier { return types.TierRemote }

func (t *remoteTier) TryGenerate(ctx context.Context, p Prompt) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	content, err := t.client.Chat(ctx, p.Model.System, p.Model.User)
	if err != nil {
		return "", err
	}
	content = stripMarkdownCodeBlock(content)
	if content == "" {
		return "", errors.New("remote model returned empty output")
	}
	return content, nil
}

type localTier struct {
	client      *Client
	contextSize int
	timeout     time.Duration
}

func (t *localTier) Name() types.Tier { return types.TierLocal }

func (t *localTier) TryGenerate(ctx context.Context, p Prompt) (string, error) {
	prompt := p.Model.Joined()
	if need := EstimateTokens(prompt) + t.client.MaxTokens; t.contextSize > 0 && need > t.contextSize {
		return "", fmt.Errorf("%w: need %d tokens, window %d", ErrContextOverflow, need, t.contextSize)
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	content, err := t.client.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	content = stripMarkdownCodeBlock(content)
	if strings.TrimSpace(content) == "" {
		return "", errors.New("local model returned empty output")
	}
	return content, nil
}

type synthTier struct {
	synth *Synthesizer
}

func (t *synthTier) Name() types.Tier { return types.TierDeterministic }

func (t *synthTier) TryGenerate(_ context.Context, p Prompt) (string, error) {
	a := p.Analysis
	if a == nil {
		a = analyzer.Analyze(p.Requirement)
	}
	return t.synth.FromAnalysis(a, p.Operation, p.APIContext), nil
}
