// Package generator adapts language-model APIs to domain.RoadmapGenerator.
package generator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"crewline/internal/config"
	"crewline/internal/domain"
)

const defaultMaxTokens = 8192

// Anthropic calls the Messages API.
type Anthropic struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic builds a client. An empty api key falls back to ANTHROPIC_API_KEY.
func NewAnthropic(cfg config.GeneratorConfig, opts ...option.RequestOption) (*Anthropic, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("generator: ANTHROPIC_API_KEY not set")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		inner:     anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}, nil
}

func (a *Anthropic) Generate(ctx context.Context, contextText string) (string, error) {
	return a.complete(ctx, roadmapPrompt, contextText)
}

func (a *Anthropic) Elaborate(ctx context.Context, contextText string) (string, error) {
	return a.complete(ctx, elaboratePrompt, contextText)
}

func (a *Anthropic) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic API call: %v", domain.ErrGenerationFailed, err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrGenerationFailed)
	}
	return out, nil
}

// Disabled is used when no provider is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: no roadmap generator configured", domain.ErrGenerationFailed)
}

func (Disabled) Elaborate(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: no roadmap generator configured", domain.ErrGenerationFailed)
}

// New picks an implementation from config.
func New(cfg config.GeneratorConfig) (domain.RoadmapGenerator, error) {
	switch cfg.Provider {
	case "", "none":
		return Disabled{}, nil
	case "anthropic":
		return NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("generator: unknown provider %q", cfg.Provider)
	}
}

const roadmapPrompt = `You are an experienced technical project manager planning volunteer software work for a nonprofit.
Given the project context, produce a roadmap of milestones and tasks.

Rules:
- Milestones are ordered phases. Each needs a title.
- Every task belongs to at most one milestone, referenced by its zero-based position in the milestones array.
- type is one of Feature, Research, Infra, Docs, Refactor.
- priority is one of Low, Medium, High, Critical.
- assigned_role must be copied exactly from the team roles listed in the context, or left empty.
- day_offset counts days from the project start.
- depends_on lists zero-based positions of tasks that must finish first. Do not create cycles.
- Break larger tasks into a few concrete subtasks.

Return your answer as JSON with this exact structure:
{
  "milestones": [
    {"title": "", "description": "", "order": 0, "day_offset": 14}
  ],
  "tasks": [
    {"title": "", "description": "", "type": "Feature", "priority": "Medium", "milestone_index": 0,
     "assigned_role": "", "order": 0, "day_offset": 7, "depends_on": [],
     "subtasks": [{"title": "", "description": "", "order": 0}]}
  ]
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.
`

const elaboratePrompt = `You are a senior engineer mentoring a volunteer on a nonprofit software project.
Given the project and one task, explain how to approach the task: the steps, the pitfalls,
what to read first and how to know it is done. Be concrete and concise. Use markdown.
`
