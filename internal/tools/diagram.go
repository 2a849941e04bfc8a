package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/asif-nvc/mcp-chat-visualizer/internal/diagram"
	"github.com/asif-nvc/mcp-chat-visualizer/internal/diagramapi"
	"github.com/asif-nvc/mcp-chat-visualizer/mcp"
)

// summaryFields are copied from the storage service's answer, in order
var summaryFields = []string{"link", "public_id", "diagram_id", "created_at"}

type createArgs struct {
	JSONContent JSONContent `json:"json_content"`
}

type updateArgs struct {
	PublicID    string      `json:"public_id"`
	JSONContent JSONContent `json:"json_content"`
}

func jsonContentSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: description,
		AnyOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "object"},
		},
	}
}

func createSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"json_content": jsonContentSchema("The diagram JSON content: either a JSON string or an object with metadata, nodes, and edges"),
		},
		Required: []string{"json_content"},
	}
}

func updateSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"public_id": {
				Type:        "string",
				Description: "The public_id returned from a previous create_public_diagram call",
			},
			"json_content": jsonContentSchema("The updated diagram JSON content: either a JSON string or an object with metadata, nodes, and edges"),
		},
		Required: []string{"public_id", "json_content"},
	}
}

func (ts *toolset) newCreateTool() *mcp.Tool {
	return mcp.NewTool(
		NameCreatePublicDiagram,
		"Create Public Diagram",
		"Create a publicly shareable diagram link. Takes diagram JSON content (a NavigateChat mindmap/graph/sequence object) "+
			"and returns a public URL that anyone can view without authentication.",
		createSchema(),
		func(ctx context.Context, in createArgs) (*mcp.CallToolResult, error) {
			content, err := in.JSONContent.Object("json_content")
			if err != nil {
				return nil, err
			}
			ts.inspect(NameCreatePublicDiagram, content)

			resp, err := ts.service.CreatePublicDiagram(ctx, content)
			return summaryResult("Error creating public diagram", resp, err), nil
		},
	)
}

func (ts *toolset) newUpdateTool() *mcp.Tool {
	return mcp.NewTool(
		NameUpdatePublicDiagram,
		"Update Public Diagram",
		"Update an existing public diagram's content at the same shareable link. "+
			"Use this when a user wants to modify a previously created diagram; the URL stays the same and the TTL is extended.",
		updateSchema(),
		func(ctx context.Context, in updateArgs) (*mcp.CallToolResult, error) {
			content, err := in.JSONContent.Object("json_content")
			if err != nil {
				return nil, err
			}
			ts.inspect(NameUpdatePublicDiagram, content)

			resp, err := ts.service.UpdatePublicDiagram(ctx, in.PublicID, content)
			return summaryResult("Error updating diagram", resp, err), nil
		},
	)
}

// inspect logs structural problems of a diagram. The storage service is
// the authority on what it accepts, so nothing is rejected here.
func (ts *toolset) inspect(tool string, content map[string]any) {
	payload, err := diagram.FromMap(content)
	if err != nil {
		ts.logger.Debug("diagram does not match the mind-map shape", "tool", tool, "error", err)
		return
	}
	if problems := payload.Problems(); len(problems) > 0 {
		ts.logger.Warn("diagram has structural problems", "tool", tool, "problems", problems)
	}
}

// summaryResult turns a storage service answer into a tool result holding
// the link fields of the stored diagram
func summaryResult(prefix string, resp *diagramapi.Response, err error) *mcp.CallToolResult {
	if soft := failureResult(prefix, resp, err); soft != nil {
		return soft
	}

	obj, _ := resp.JSON.(map[string]any)

	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	for _, key := range summaryFields {
		value, ok := obj[key]
		if !ok {
			continue
		}
		data, err := marshal(value)
		if err != nil {
			return mcp.ErrorResult(fmt.Sprintf("%s: %v", prefix, err))
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		keyData, _ := marshal(key)
		buf.Write(keyData)
		buf.WriteByte(':')
		buf.Write(data)
		n++
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("%s: %v", prefix, err))
	}
	return mcp.TextResult(out.String())
}

// failureResult returns the soft error for a call that did not produce a
// usable JSON answer, or nil
func failureResult(prefix string, resp *diagramapi.Response, err error) *mcp.CallToolResult {
	switch {
	case err != nil:
		return mcp.ErrorResult(fmt.Sprintf("%s: %v", prefix, err))
	case !resp.OK():
		return mcp.ErrorResult(fmt.Sprintf("%s (%d): %s", prefix, resp.Status, resp.Text()))
	case resp.JSON == nil:
		return mcp.ErrorResult(fmt.Sprintf("%s: response is not valid JSON: %s", prefix, preview(resp.Body)))
	default:
		return nil
	}
}

// marshal encodes v without escaping HTML characters, which are common in
// links
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
