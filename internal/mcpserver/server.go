// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes language, theme, highlight and build tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/shikibuild/internal/buildservice"
)

const (
	languagesURI = "shikibuild://languages"
	notationURI  = "shikibuild://notation"
)

// Server wraps the MCP server with shikibuild tools.
type Server struct {
	mcp *server.MCPServer
	svc *buildservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *buildservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"shikibuild",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("check_language",
		mcp.WithDescription("Check whether a code fence language tag is supported and what it resolves to."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Language tag as written after the fence, e.g. js")),
	), s.checkLanguage)

	s.mcp.AddTool(mcp.NewTool("suggest_languages",
		mcp.WithDescription("Suggest supported languages resembling an unknown tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Unknown language tag")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of suggestions (default 3)")),
	), s.suggestLanguages)

	s.mcp.AddTool(mcp.NewTool("list_themes",
		mcp.WithDescription("List available themes and the configured light/dark pair."),
	), s.listThemes)

	s.mcp.AddTool(mcp.NewTool("highlight_code",
		mcp.WithDescription("Render a snippet to dual-theme HTML. Notation comments are described by the "+
			"shikibuild://notation resource."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Source code to highlight")),
		mcp.WithString("lang", mcp.Description("Language tag (empty for plaintext)")),
		mcp.WithString("meta", mcp.Description("Fence meta string, e.g. file=main.go")),
	), s.highlightCode)

	s.mcp.AddTool(mcp.NewTool("run_build",
		mcp.WithDescription("Run an incremental build of the content directory and return its report."),
	), s.runBuild)

	s.mcp.AddTool(mcp.NewTool("last_build",
		mcp.WithDescription("Return the report of the most recent build run by this server."),
	), s.lastBuild)

	s.mcp.AddResource(
		mcp.NewResource(languagesURI, "Supported Languages",
			mcp.WithResourceDescription("Markdown table of supported languages, ids and aliases."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLanguagesResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(notationURI, "Code Block Notation",
			mcp.WithResourceDescription("Fence meta and inline notation comments understood by the highlighter."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNotationResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) checkLanguage(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.CheckLanguage(tag)), nil
}

func (s *Server) suggestLanguages(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 3)
	if limit < 1 {
		limit = 3
	}
	suggestions := s.svc.Resolver().Suggest(tag, limit)
	if len(suggestions) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no similar languages for %q; plaintext is used as fallback", tag)), nil
	}
	return jsonResult(suggestions), nil
}

func (s *Server) listThemes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Themes()), nil
}

func (s *Server) highlightCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := s.svc.Highlight(ctx, code, req.GetString("lang", ""), req.GetString("meta", ""))
	if !res.Success {
		out, _ := json.MarshalIndent(res.Errors, "", "  ")
		return mcp.NewToolResultError("highlight failed: " + string(out)), nil
	}
	return jsonResult(res), nil
}

func (s *Server) runBuild(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Trigger(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report), nil
}

func (s *Server) lastBuild(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Latest()
	if err != nil {
		return mcp.NewToolResultError("no build has run yet"), nil
	}
	return jsonResult(report), nil
}

func (s *Server) readLanguagesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      languagesURI,
			MIMEType: "text/markdown",
			Text:     s.svc.Resolver().Documentation(),
		},
	}, nil
}

func (s *Server) readNotationResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      notationURI,
			MIMEType: "text/markdown",
			Text:     NotationGuide,
		},
	}, nil
}
