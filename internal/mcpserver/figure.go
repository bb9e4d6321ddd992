package mcpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/aozoraconv/internal/corpus"
)

const maxFigureSize = 10 << 20 // 10 MB

var extToMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

func (s *Server) getFigure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ext := strings.ToLower(path.Ext(name))
	mime, ok := extToMIME[ext]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported figure extension: %s (allowed: png, jpg, jpeg, gif)", ext)), nil
	}

	data, err := s.svc.Figure(ctx, id, name)
	if err != nil {
		if errors.Is(err, corpus.ErrBadName) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolError(id+"/"+name, err), nil
	}
	if len(data) > maxFigureSize {
		return mcp.NewToolResultError(fmt.Sprintf("figure too large: %d bytes (max %d)", len(data), maxFigureSize)), nil
	}
	if err := validateMagicBytes(data, mime); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultImage(name, base64.StdEncoding.EncodeToString(data), mime), nil
}

// validateMagicBytes verifies file content matches the type its name claims.
func validateMagicBytes(data []byte, mime string) error {
	detected := http.DetectContentType(data)
	if detected != mime {
		return fmt.Errorf("content does not match %s (detected: %s)", mime, detected)
	}
	return nil
}
