package tools

import (
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/asif-nvc/mcp-chat-visualizer/mcp"
)

//go:embed prompt.tmpl
var promptTemplate string

var prompt = template.Must(template.New("prompt").Parse(promptTemplate))

// RenderPrompt returns the instructions for turning conversation into a
// mind-map document. The conversation is embedded verbatim.
func RenderPrompt(conversation string) (string, error) {
	var b strings.Builder
	if err := prompt.Execute(&b, struct{ Conversation string }{conversation}); err != nil {
		return "", err
	}
	return b.String(), nil
}

type visualizeArgs struct {
	Conversation string `json:"conversation"`
}

func visualizeSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"conversation": {
				Type:        "string",
				Description: "The conversation text or summary to visualize as a mind map",
			},
		},
		Required: []string{"conversation"},
	}
}

func newVisualizeTool() *mcp.Tool {
	return mcp.NewTool(
		NameVisualizeChat,
		"Visualize Chat",
		"Visualize a conversation as a structured JSON mind map. Pass the conversation text. "+
			"The tool returns exact instructions you MUST follow to produce raw JSON output. "+
			"IMPORTANT: Output ONLY valid raw JSON; never output Mermaid, Markdown, or any other format.",
		visualizeSchema(),
		func(ctx context.Context, in visualizeArgs) (*mcp.CallToolResult, error) {
			text, err := RenderPrompt(in.Conversation)
			if err != nil {
				return nil, err
			}
			return mcp.TextResult(text), nil
		},
	)
}
