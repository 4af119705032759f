// Package insight turns scan findings into a short narrative via a hosted
// text-completion API. The narrative is optional: callers treat any error as
// "no narrative" and never fail the scan on it.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitesage/webscan/internal/scan"
)

// Config holds narrator settings. APIKey is required; a narrator is only
// constructed when a key is configured.
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Narrator posts a findings digest to the completion API and parses the
// model output into a Narrative.
type Narrator struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New builds a narrator client.
func New(cfg Config, logger *zap.Logger) *Narrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You are a website quality consultant. Given scan findings, reply with JSON only:
{"summary": "<two sentences>", "recommendations": ["<action>", ...]}
At most five recommendations, ordered by impact.`

// Narrate builds the findings digest, calls the completion API, and parses
// the reply. A reply that is not valid JSON becomes the summary verbatim.
func (n *Narrator) Narrate(ctx context.Context, s scan.Scan, results []scan.AnalyzerResult, aggregate scan.AggregateResult) (*scan.Narrative, error) {
	body, err := json.Marshal(completionRequest{
		Model: n.cfg.Model,
		Messages: []completionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: digest(s, results, aggregate)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)

	resp, err := n.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("completion service returned %d: %s", resp.StatusCode, msg)
	}

	var payload completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}
	return parseNarrative(payload.Choices[0].Message.Content), nil
}

// digest renders the findings as compact text for the prompt.
func digest(s scan.Scan, results []scan.AnalyzerResult, aggregate scan.AggregateResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s\nOverall score: %d/100\n", s.TargetURL, aggregate.OverallScore)
	for _, r := range results {
		if r.Status != scan.AnalyzerCompleted {
			fmt.Fprintf(&b, "- %s: failed (%s)\n", r.Kind, r.Error)
			continue
		}
		switch {
		case r.Security != nil:
			fmt.Fprintf(&b, "- security: %d/%d checks passed\n", r.Security.ChecksPassed, r.Security.ChecksPerformed)
		case r.Performance != nil:
			fmt.Fprintf(&b, "- performance: %d/100 (%s)\n", r.Performance.Score, r.Performance.Strategy)
		case r.Accessibility != nil:
			fmt.Fprintf(&b, "- accessibility: %d/100, %s\n", r.Accessibility.Score, r.Accessibility.WCAGLevel)
		case r.APISurface != nil:
			fmt.Fprintf(&b, "- api surface: %d endpoint(s)\n", len(r.APISurface.Endpoints))
		case r.TechStack != nil:
			names := make([]string, 0, len(r.TechStack.Technologies))
			for _, tech := range r.TechStack.Technologies {
				names = append(names, tech.Name)
			}
			fmt.Fprintf(&b, "- tech stack: %s\n", strings.Join(names, ", "))
		case r.Interactive != nil:
			fmt.Fprintf(&b, "- interactive: %d button(s), %d link(s), %d form(s)\n",
				r.Interactive.Buttons, r.Interactive.Links, r.Interactive.Forms)
		}
	}
	for _, issue := range aggregate.TopIssues {
		fmt.Fprintf(&b, "issue [%s] %s\n", issue.Severity, issue.Title)
	}
	return b.String()
}

// parseNarrative accepts plain JSON or JSON inside a fenced code block. Any
// other content becomes the summary as-is.
func parseNarrative(content string) *scan.Narrative {
	text := strings.TrimSpace(content)
	candidate := text
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimPrefix(candidate, "```json")
		candidate = strings.TrimPrefix(candidate, "```")
		candidate = strings.TrimSuffix(strings.TrimSpace(candidate), "```")
		candidate = strings.TrimSpace(candidate)
	}

	var parsed scan.Narrative
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && parsed.Summary != "" {
		return &parsed
	}
	return &scan.Narrative{Summary: text}
}
