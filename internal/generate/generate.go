// Package generate turns an admissible travel query into an itinerary
// payload: validation gate, fingerprint-keyed cache lookup, optional weather
// augmentation through MCP tools, then the LLM call.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"

	"github.com/planora-app/assistant-go/internal/cache"
	"github.com/planora-app/assistant-go/internal/config"
	"github.com/planora-app/assistant-go/internal/fingerprint"
	"github.com/planora-app/assistant-go/internal/llm"
	"github.com/planora-app/assistant-go/internal/logger"
	"github.com/planora-app/assistant-go/internal/query"
	"github.com/planora-app/assistant-go/internal/session"
)

const defaultSystemPrompt = "Tu es un assistant de planification de roadtrips. " +
	"Réponds uniquement avec un document JSON contenant les champs destination, " +
	"recommendedDuration, idealSeason, estimatedBudget ou budgetBreakdown, " +
	"pointsOfInterest, itinerary (liste de jours avec day, location, description, " +
	"distance, driveTime, stops, activities, accommodation), practicalTips et callToAction."

// ValidationError is a user-facing rejection: the query is off-domain or its
// duration violates the trip-length policy. The message is shown as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrOffTopic rejects queries the admissibility filter deems out of domain.
var ErrOffTopic = &ValidationError{
	Message: "Je peux uniquement vous aider à planifier un roadtrip. Décrivez votre voyage !",
}

// ResultCache is the slice of the cache store the service needs.
type ResultCache interface {
	Get(key string) (string, error)
	Set(key, payload string) error
}

// MCPClientInterface defines the methods the service expects from an MCP
// client.
type MCPClientInterface interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Service implements session.Generator.
type Service struct {
	llmClient llm.Client
	llmCfg    config.LLMConfig
	assistant config.AssistantConfig
	cache     ResultCache

	mcpClients []MCPClientInterface
	toolSet    map[string]MCPClientInterface
}

// New builds the service and connects the configured MCP servers, which
// provide whatever weather tooling the deployment offers. A server that
// fails to come up is skipped, never fatal.
func New(llmClient llm.Client, appCfg config.Config, resultCache ResultCache) *Service {
	s := &Service{
		llmClient: llmClient,
		llmCfg:    appCfg.LLM,
		assistant: appCfg.Assistant,
		cache:     resultCache,
		toolSet:   make(map[string]MCPClientInterface),
	}

	ctx := context.Background()
	for _, serverCfg := range appCfg.MCPServers {
		var mcpC *client.Client
		var err error

		switch serverCfg.Type {
		case config.ClientTypeSSE:
			var sseOpts []transport.ClientOption
			if len(serverCfg.Headers) > 0 {
				sseOpts = append(sseOpts, transport.WithHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewSSEMCPClient(serverCfg.URL, sseOpts...)
		case config.ClientTypeStreamableHTTP:
			var httpOpts []transport.StreamableHTTPCOption
			if len(serverCfg.Headers) > 0 {
				httpOpts = append(httpOpts, transport.WithHTTPHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewStreamableHttpClient(serverCfg.URL, httpOpts...)
		case config.ClientTypeStdio:
			var env []string
			for k, v := range serverCfg.Env {
				env = append(env, fmt.Sprintf("%s=%s", k, v))
			}
			mcpC, err = client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
		default:
			logger.L.Warn("generate: unsupported MCP server type, skipping", "type", serverCfg.Type, "name", serverCfg.Name)
			continue
		}
		if err != nil {
			logger.L.Error("generate: failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		if serverCfg.Type != config.ClientTypeStdio {
			if err = mcpC.Start(ctx); err != nil {
				logger.L.Error("generate: failed to start MCP transport", "name", serverCfg.Name, "error", err)
				_ = mcpC.Close()
				continue
			}
		}

		if _, err = mcpC.Initialize(ctx, mcp.InitializeRequest{
			Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
		}); err != nil {
			logger.L.Error("generate: failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			_ = mcpC.Close()
			continue
		}
		s.mcpClients = append(s.mcpClients, mcpC)

		serverTools, err := mcpC.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			logger.L.Warn("generate: failed to list MCP tools", "name", serverCfg.Name, "error", err)
			continue
		}
		for _, tool := range serverTools.Tools {
			if _, exists := s.toolSet[tool.Name]; exists {
				logger.L.Warn("generate: MCP tool already registered, skipping", "tool", tool.Name, "name", serverCfg.Name)
				continue
			}
			s.toolSet[tool.Name] = mcpC
			logger.L.Info("generate: registered MCP tool", "tool", tool.Name, "name", serverCfg.Name)
		}
	}

	return s
}

// Generate validates the query, consults the fingerprint cache, and calls
// the LLM on a miss. The returned payload is the raw generation result,
// formatted downstream by the session.
func (s *Service) Generate(ctx context.Context, queryText string, opts session.Options) (string, error) {
	if !query.IsRoadtripRelated(queryText) {
		return "", ErrOffTopic
	}

	validation := query.ExtractDuration(queryText)
	if validation.Err != "" {
		return "", &ValidationError{Message: validation.Err}
	}

	req := s.normalize(queryText, validation)
	key := fingerprint.Derive(req)

	if s.cache != nil {
		if payload, err := s.cache.Get(key); err == nil {
			logger.L.Debug("generate: cache hit", "key", key)
			return payload, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			logger.L.Warn("generate: cache read failed", "key", key, "error", err)
		}
	}

	userPrompt := s.buildPrompt(ctx, req, opts)

	systemPrompt := s.llmCfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	resp, err := s.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.llmCfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("generation: empty response")
	}
	payload := resp.Choices[0].Message.Content

	if s.cache != nil {
		if err := s.cache.Set(key, payload); err != nil {
			logger.L.Warn("generate: cache write failed", "key", key, "error", err)
		}
	}
	return payload, nil
}

// normalize builds the canonical request, applying the configured default
// table once rather than re-deriving fallbacks at call sites.
func (s *Service) normalize(queryText string, validation query.Validation) fingerprint.Request {
	req := fingerprint.Request{
		Query:       strings.TrimSpace(queryText),
		TravelStyle: s.assistant.DefaultTravelStyle,
		Budget:      s.assistant.DefaultBudget,
	}
	if validation.Days != nil {
		req.Duration = *validation.Days
	}
	return req
}

// buildPrompt assembles the user prompt, folding in the weather tool output
// when requested and available.
func (s *Service) buildPrompt(ctx context.Context, req fingerprint.Request, opts session.Options) string {
	var b strings.Builder
	b.WriteString(req.Query)
	if req.Duration > 0 {
		fmt.Fprintf(&b, "\nDurée du voyage : %d jours.", req.Duration)
	}
	fmt.Fprintf(&b, "\nStyle de voyage : %s. Budget indicatif : %s €.", req.TravelStyle, req.Budget)

	if opts.IncludeWeather {
		if report := s.weatherReport(ctx, req.Query); report != "" {
			fmt.Fprintf(&b, "\nMétéo actuelle : %s", report)
		}
	}
	return b.String()
}

// weatherReport calls the configured weather tool. Any failure degrades to
// an empty report; weather is an enrichment, never a blocker.
func (s *Service) weatherReport(ctx context.Context, queryText string) string {
	toolName := s.assistant.WeatherTool
	mcpC, ok := s.toolSet[toolName]
	if !ok {
		return ""
	}

	result, err := mcpC.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: map[string]any{"query": queryText},
		},
	})
	if err != nil {
		logger.L.Warn("generate: weather tool call failed", "tool", toolName, "error", err)
		return ""
	}
	if result == nil || result.IsError {
		logger.L.Warn("generate: weather tool returned an error", "tool", toolName)
		return ""
	}
	for _, item := range result.Content {
		if text, ok := item.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// Close shuts down the MCP clients.
func (s *Service) Close() {
	for _, c := range s.mcpClients {
		if err := c.Close(); err != nil {
			logger.L.Warn("generate: MCP client close", "error", err)
		}
	}
}
