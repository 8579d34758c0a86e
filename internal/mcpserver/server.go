// Package mcpserver exposes the probe presets as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/anstrom/tellix/internal/errors"
	"github.com/anstrom/tellix/internal/logging"
	"github.com/anstrom/tellix/internal/probe"
)

const serverName = "tellix"

const targetsDescription = "Line-separated list of URLs or hosts to scan"

// Prober is the part of probe.Prober the tools need.
type Prober interface {
	Probe(ctx context.Context, req probe.Request) (*probe.Result, error)
	Options() probe.Options
}

// toolOutput is the text payload of every probing tool result.
type toolOutput struct {
	Command string            `json:"command"`
	Level   probe.Level       `json:"level"`
	Targets int               `json:"targets,omitempty"`
	Results []json.RawMessage `json:"results,omitzero"`
	Error   string            `json:"error,omitempty"`
}

type confirmationRefusal struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type toolMetadata struct {
	Tools               []probe.Preset `json:"tools"`
	SelectionGuidelines string         `json:"selection_guidelines"`
}

// Server wires the tools and prompts into an MCP server.
type Server struct {
	mcp    *server.MCPServer
	prober Prober
	logger *logging.Logger
}

// New registers every tool and prompt. A nil logger uses the default logger.
func New(prober Prober, version string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{
		mcp: server.NewMCPServer(serverName, version,
			server.WithToolCapabilities(true),
			server.WithPromptCapabilities(true),
			server.WithRecovery(),
		),
		prober: prober,
		logger: logger.WithComponent("mcp"),
	}

	for _, preset := range probe.Presets() {
		if preset.Level == probe.LevelFull {
			s.mcp.AddTool(fullTool(preset), s.handleFull)
			continue
		}
		s.mcp.AddTool(presetTool(preset), s.presetHandler(preset.Level))
	}
	s.mcp.AddTool(metadataTool(), s.handleMetadata)
	s.mcp.AddPrompt(reconPrompt(), s.handleReconPrompt)

	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP over in and out until in is exhausted or ctx is canceled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(s.logger.StdLogger())

	s.logger.Info("MCP server listening on stdio")
	err := stdio.Listen(ctx, in, out)
	if err == nil || stderrors.Is(err, io.EOF) || stderrors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("mcp server stopped: %w", err)
}

func presetTool(preset probe.Preset) mcp.Tool {
	return mcp.NewTool(preset.Tool,
		mcp.WithDescription(preset.Description+". "+preset.Usage),
		mcp.WithString("targets", mcp.Required(), mcp.Description(targetsDescription)),
	)
}

func fullTool(preset probe.Preset) mcp.Tool {
	return mcp.NewTool(preset.Tool,
		mcp.WithDescription(preset.Description+". "+preset.Usage),
		mcp.WithString("targets", mcp.Required(), mcp.Description(targetsDescription)),
		mcp.WithBoolean("confirm", mcp.Required(),
			mcp.Description("Confirmation for retrieving full content (required)")),
	)
}

func metadataTool() mcp.Tool {
	return mcp.NewTool("http_probe_metadata",
		mcp.WithDescription("Describes the HTTP reconnaissance tools and when to use each one"),
		mcp.WithString("action", mcp.Enum("help"), mcp.DefaultString("help")),
	)
}

func reconPrompt() mcp.Prompt {
	return mcp.NewPrompt("http_recon_scan",
		mcp.WithPromptDescription("Quick HTTP scan for basic information about websites"),
		mcp.WithArgument("targets",
			mcp.ArgumentDescription("Website URLs or hostnames to scan, one per line"),
			mcp.RequiredArgument(),
		),
	)
}

func (s *Server) presetHandler(level probe.Level) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		targets, err := req.RequireString("targets")
		if err != nil {
			return s.failure(level, "", errors.ErrMissingParameter("targets"))
		}
		return s.run(ctx, level, targets)
	}
}

func (s *Server) handleFull(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targets, err := req.RequireString("targets")
	if err != nil {
		return s.failure(probe.LevelFull, "", errors.ErrMissingParameter("targets"))
	}

	if !req.GetBool("confirm", false) {
		count := probe.CountTargets(targets)
		s.logger.Info("Full reconnaissance refused without confirmation", "targets", count)
		return textResult(confirmationRefusal{
			Error: "Full reconnaissance not confirmed",
			Message: fmt.Sprintf("HTTP full reconnaissance requires explicit confirmation as it will "+
				"retrieve complete page content for %d targets, which could result in large data "+
				"transfers. Set 'confirm: true' to proceed.", count),
		})
	}

	return s.run(ctx, probe.LevelFull, targets)
}

func (s *Server) handleMetadata(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if action := req.GetString("action", "help"); action != "help" {
		return mcp.NewToolResultError(errors.Message(errors.ErrUnknownAction(action, []string{"help"}))), nil
	}
	return textResult(toolMetadata{
		Tools:               probe.Presets(),
		SelectionGuidelines: probe.SelectionGuidelines,
	})
}

func (s *Server) handleReconPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	targets := req.Params.Arguments["targets"]
	if probe.CountTargets(targets) == 0 {
		return nil, errors.ErrMissingParameter("targets")
	}

	return mcp.NewGetPromptResult(
		"HTTP Reconnaissance",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser,
				mcp.NewTextContent(fmt.Sprintf("Run a quick HTTP scan on these targets: %s", targets))),
		},
	), nil
}

func (s *Server) run(ctx context.Context, level probe.Level, targets string) (*mcp.CallToolResult, error) {
	flags := probe.PresetFlags(level)
	command := probe.CommandLine(s.prober.Options().Binary, flags)

	result, err := s.prober.Probe(ctx, probe.Request{
		Targets: targets,
		Args:    flags,
		Level:   level,
	})
	if err != nil {
		return s.failure(level, command, err)
	}

	return textResult(toolOutput{
		Command: result.Command,
		Level:   result.Level,
		Targets: result.Targets,
		Results: result.Records,
	})
}

// failure reports an error as a tool result so the agent sees it, rather
// than as a protocol error.
func (s *Server) failure(level probe.Level, command string, err error) (*mcp.CallToolResult, error) {
	s.logger.Warn("Tool invocation failed", "preset", level, "error", err)

	out := toolOutput{Command: command, Level: level, Error: errors.Message(err)}
	data, merr := json.MarshalIndent(out, "", "  ")
	if merr != nil {
		return nil, merr
	}
	return mcp.NewToolResultError(string(data)), nil
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
