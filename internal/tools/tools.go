// Package tools implements the chat visualizer tools: building the mind-map
// prompt and storing, updating and repairing diagrams with the storage
// service.
package tools

import (
	"context"
	"log/slog"

	"github.com/asif-nvc/mcp-chat-visualizer/internal/diagramapi"
	"github.com/asif-nvc/mcp-chat-visualizer/mcp"
)

// Tool names
const (
	NameVisualizeChat       = "visualize_chat"
	NameCreatePublicDiagram = "create_public_diagram"
	NameUpdatePublicDiagram = "update_public_diagram"
	NameJustifyContent      = "justify_content"
)

// Names lists every tool in registration order
var Names = []string{
	NameVisualizeChat,
	NameCreatePublicDiagram,
	NameUpdatePublicDiagram,
	NameJustifyContent,
}

// DiagramService is the storage service used by the diagram tools.
// *diagramapi.Client implements it.
type DiagramService interface {
	CreatePublicDiagram(ctx context.Context, content map[string]any) (*diagramapi.Response, error)
	UpdatePublicDiagram(ctx context.Context, publicID string, content map[string]any) (*diagramapi.Response, error)
	JustifyContent(ctx context.Context, userJSON string) (*diagramapi.Response, error)
}

var _ DiagramService = (*diagramapi.Client)(nil)

type toolset struct {
	service DiagramService
	logger  *slog.Logger
}

// New returns every tool backed by service
func New(service DiagramService, logger *slog.Logger) []*mcp.Tool {
	if logger == nil {
		logger = slog.Default()
	}
	ts := &toolset{service: service, logger: logger}
	return []*mcp.Tool{
		newVisualizeTool(),
		ts.newCreateTool(),
		ts.newUpdateTool(),
		ts.newJustifyTool(),
	}
}

// NewRegistry registers every tool for which disabled returns false. A nil
// disabled registers all of them.
func NewRegistry(service DiagramService, logger *slog.Logger, disabled func(name string) bool) (*mcp.Registry, error) {
	registry, err := mcp.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, tool := range New(service, logger) {
		if disabled != nil && disabled(tool.Name) {
			continue
		}
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
