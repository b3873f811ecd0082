// Package gemini rewrites rough prompts into agent instructions with the
// Gemini API.
package gemini

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"promptman/internal/enhance"
)

// FallbackModel is used when the model list cannot be fetched.
const FallbackModel = "gemini-2.5-flash"

// PreferredModels are tried in order, fastest and cheapest first.
var PreferredModels = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-2.0-flash-001",
	"gemini-flash-latest",
	"gemini-2.5-pro",
	"gemini-pro-latest",
	"gemini-2.0-flash-lite",
}

const promptTemplate = `You are an expert AI prompt engineer. Rewrite the following user input into a clear, detailed and effective prompt for an AI agent that can execute actions and modify code.

User Input: "%s"

Guidelines:
1. Turn the input into an INSTRUCTION for the agent to EXECUTE an action, not to generate or explain text.
2. Focus on what the agent should DO.
3. If the input asks for a command or code, instruct the agent to run or write it rather than print it.
4. Add the context the agent needs: which files to work with, what to check, which conditions to consider.
5. Keep the original intent but make it actionable and specific for an AI coding assistant.
6. Use the imperative mood ("Create", "Implement", "Modify", "Add").

Examples:
- Input: "make a git commit" -> Output: "Stage all currently modified and new files, then create a git commit with an appropriate commit message based on the changes. Analyze the staged changes to determine a meaningful commit message."
- Input: "add a button" -> Output: "Add a button component to the current file. Determine the appropriate location and styling based on the existing UI patterns."
- Input: "fix the bug" -> Output: "Identify and fix the bug in the current codebase. First analyze the code to locate the issue, then implement the fix."

Return ONLY the enhanced prompt text as a single paragraph, no explanations, no quotes, no markdown formatting.`

// backend is the slice of the Gemini API the client needs.
type backend interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
	Models(ctx context.Context) ([]string, error)
}

// Client implements enhance.Rewriter. It is safe for concurrent use and can
// be reconfigured while running.
type Client struct {
	mu      sync.RWMutex
	api     backend
	model   string
	pinned  string
	connect func(ctx context.Context, key string) (backend, error)
	log     *zap.Logger
}

// New creates an unconfigured client. A non-empty model skips automatic
// model selection.
func New(model string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		pinned:  model,
		connect: dial,
		log:     log,
	}
}

// Configure connects with key. An empty key leaves the client
// unconfigured.
func (c *Client) Configure(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		c.mu.Lock()
		c.api, c.model = nil, ""
		c.mu.Unlock()
		return nil
	}

	api, err := c.connect(ctx, key)
	if err != nil {
		return fmt.Errorf("gemini: connect: %w", err)
	}

	model := c.pinned
	if model == "" {
		names, err := api.Models(ctx)
		if err != nil {
			c.log.Warn("Could not list models, using fallback",
				zap.String("model", FallbackModel), zap.Error(err))
			model = FallbackModel
		} else {
			model = pickModel(names, PreferredModels)
		}
	}
	if model == "" {
		return fmt.Errorf("gemini: no model supports content generation")
	}

	c.mu.Lock()
	c.api, c.model = api, model
	c.mu.Unlock()
	c.log.Info("Gemini configured", zap.String("model", model))
	return nil
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api != nil
}

// Model returns the model in use, empty when unconfigured.
func (c *Client) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Enhance rewrites input into an execution-oriented instruction.
func (c *Client) Enhance(ctx context.Context, input string) (string, error) {
	c.mu.RLock()
	api, model := c.api, c.model
	c.mu.RUnlock()
	if api == nil {
		return "", enhance.ErrNotConfigured
	}

	out, err := api.Generate(ctx, model, fmt.Sprintf(promptTemplate, input))
	if err != nil {
		return "", fmt.Errorf("gemini: generate with %s: %w", model, err)
	}
	return strings.TrimSpace(out), nil
}

// pickModel chooses from the available models: an exact preferred name,
// then a model of the same family, then any flash model, then the first.
func pickModel(available, preferred []string) string {
	for _, p := range preferred {
		if slices.Contains(available, p) {
			return p
		}
	}
	for _, p := range preferred {
		for _, a := range available {
			if sameFamily(p, a) {
				return a
			}
		}
	}
	for _, a := range available {
		if strings.Contains(a, "flash") && !strings.Contains(a, "latest") {
			return a
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return ""
}

func sameFamily(preferred, available string) bool {
	pp, ap := strings.Split(preferred, "-"), strings.Split(available, "-")
	if len(pp) < 2 || len(ap) < 2 || pp[0] != ap[0] {
		return false
	}
	flash := strings.Contains(preferred, "flash") && strings.Contains(available, "flash")
	pro := strings.Contains(preferred, "pro") && strings.Contains(available, "pro")
	return flash || pro
}

type genaiBackend struct {
	client *genai.Client
}

func dial(ctx context.Context, key string) (backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &genaiBackend{client: client}, nil
}

func (b *genaiBackend) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Models lists the models that support generateContent, without the
// "models/" prefix.
func (b *genaiBackend) Models(ctx context.Context) ([]string, error) {
	var names []string
	for m, err := range b.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		if len(m.SupportedActions) > 0 && !slices.Contains(m.SupportedActions, "generateContent") {
			continue
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}
