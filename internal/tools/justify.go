package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/asif-nvc/mcp-chat-visualizer/mcp"
)

type justifyArgs struct {
	UserJSON string `json:"user_json"`
}

func justifySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"user_json": {
				Type:        "string",
				Description: "The JSON string to validate and refactor into NavigateChat diagram format",
			},
		},
		Required: []string{"user_json"},
	}
}

func (ts *toolset) newJustifyTool() *mcp.Tool {
	return mcp.NewTool(
		NameJustifyContent,
		"Justify Content",
		"Validate and refactor JSON content to match the NavigateChat diagram structure. "+
			"Pass raw or malformed diagram JSON and receive a corrected version that conforms to the expected schema.",
		justifySchema(),
		func(ctx context.Context, in justifyArgs) (*mcp.CallToolResult, error) {
			const prefix = "Error justifying content"

			resp, err := ts.service.JustifyContent(ctx, in.UserJSON)
			if soft := failureResult(prefix, resp, err); soft != nil {
				return soft, nil
			}

			// Re-indent the body itself so the service's key order survives.
			var out bytes.Buffer
			if err := json.Indent(&out, bytes.TrimSpace(resp.Body), "", "  "); err != nil {
				return mcp.ErrorResult(fmt.Sprintf("%s: %v", prefix, err)), nil
			}
			return mcp.TextResult(out.String()), nil
		},
	)
}
