// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the converted Aozora Bunko catalog to LLM clients via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/bookservice"
)

const (
	segmentFormatURI = "aozoraconv://segment-format"
	defaultReadChars = 20000
)

// Server wraps the MCP server with the catalog tools.
type Server struct {
	mcp *server.MCPServer
	svc *bookservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *bookservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"aozoraconv",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_books",
		mcp.WithDescription("Full-text search through converted books: titles, author names and body text. "+
			"Queries shorter than three characters only match titles and authors when the catalog uses FTS5."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchBooks)

	s.mcp.AddTool(mcp.NewTool("list_books",
		mcp.WithDescription("List converted books ordered by kana title."),
		mcp.WithString("author", mcp.Description("Optional author id to restrict the list to")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listBooks)

	s.mcp.AddTool(mcp.NewTool("read_book",
		mcp.WithDescription("Read a converted book. format=text returns the plain reading text of the body "+
			"(ruby bases only, annotations removed); format=json returns the segment tree described by the "+
			segmentFormatURI+" resource. Long texts are paged with offset and max_chars."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Book id, e.g. 000127")),
		mcp.WithString("format", mcp.Enum("text", "json"), mcp.Description("Output format (default text)")),
		mcp.WithNumber("offset", mcp.Description("Character offset into the text (format=text only)")),
		mcp.WithNumber("max_chars", mcp.Description("Maximum characters returned (format=text only, default 20000)")),
	), s.readBook)

	s.mcp.AddTool(mcp.NewTool("get_book_warnings",
		mcp.WithDescription("List the notation irregularities found while converting a book."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Book id")),
	), s.getBookWarnings)

	s.mcp.AddTool(mcp.NewTool("get_figure",
		mcp.WithDescription("Return a figure referenced by an image segment of a book as an image."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Book id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Figure file name from the image segment, e.g. fig127_01.png")),
	), s.getFigure)

	s.mcp.AddTool(mcp.NewTool("get_segment_format",
		mcp.WithDescription("Returns the description of the JSON segment tree produced by read_book with format=json."),
	), s.getSegmentFormat)

	s.mcp.AddResource(
		mcp.NewResource(segmentFormatURI, "Segment Format",
			mcp.WithResourceDescription("JSON shape of converted book content."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSegmentFormatResource,
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

func toolError(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchBooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no books found"), nil
	}
	return jsonResult(results)
}

func (s *Server) listBooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListBooks(ctx, req.GetInt("limit", 50), req.GetInt("offset", 0), req.GetString("author", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d books\n", total)
	for _, it := range items {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", it.ID, it.Title, strings.Join(it.Authors, "、"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	switch format := req.GetString("format", "text"); format {
	case "json":
		content, err := s.svc.Content(ctx, id)
		if err != nil {
			return toolError(id, err), nil
		}
		return jsonResult(content)
	case "text":
		text, err := s.svc.Text(ctx, id)
		if err != nil {
			return toolError(id, err), nil
		}
		return mcp.NewToolResultText(page(text, req.GetInt("offset", 0), req.GetInt("max_chars", defaultReadChars))), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format: %s", format)), nil
	}
}

// page cuts a window of limit runes out of text starting at offset, with a
// trailer telling the caller where to continue.
func page(text string, offset, limit int) string {
	rs := []rune(text)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rs) {
		return ""
	}
	if limit <= 0 {
		limit = defaultReadChars
	}
	end := min(offset+limit, len(rs))
	out := string(rs[offset:end])
	if end < len(rs) {
		out += fmt.Sprintf("\n\n[truncated: %d of %d characters; continue with offset=%d]", end, len(rs), end)
	}
	return out
}

func (s *Server) getBookWarnings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ws, err := s.svc.Warnings(ctx, id)
	if err != nil {
		return toolError(id, err), nil
	}
	if len(ws) == 0 {
		return mcp.NewToolResultText("no warnings"), nil
	}
	var b strings.Builder
	for _, w := range ws {
		fmt.Fprintf(&b, "%s line %d: %s", w.Section, w.Line, w.Kind)
		if w.Detail != "" {
			fmt.Fprintf(&b, ": %s", w.Detail)
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getSegmentFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SegmentFormat), nil
}

func (s *Server) readSegmentFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      segmentFormatURI,
			MIMEType: "text/markdown",
			Text:     SegmentFormat,
		},
	}, nil
}
