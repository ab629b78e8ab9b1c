package agent

import (
	"context"
	"os/exec"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

// ContextAnalyst delegates tasks to an external MCP server over stdio.
// The server brings its own tools; the analyst binds to one of them and
// forwards each task as the tool's query.
type ContextAnalyst struct {
	spec     model.AgentSpec
	recorder *Recorder
	session  *mcp.ClientSession
	tool     string
}

// NewContextAnalyst spawns the MCP server and binds to toolName. An empty
// toolName binds to the first tool the server advertises.
func NewContextAnalyst(ctx context.Context, spec model.AgentSpec, recorder *Recorder, command []string, toolName string) (*ContextAnalyst, error) {
	if len(command) == 0 {
		return nil, goerr.New("MCP server command is required")
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "hivemind",
		Version: "0.1.0",
	}, nil)

	cmd := exec.Command(command[0], command[1:]...)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to MCP server",
			goerr.V("command", command))
	}

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		_ = session.Close()
		return nil, goerr.Wrap(err, "failed to list MCP tools")
	}
	if len(tools.Tools) == 0 {
		_ = session.Close()
		return nil, goerr.New("MCP server advertises no tools")
	}

	if toolName == "" {
		toolName = tools.Tools[0].Name
	} else {
		found := false
		for _, t := range tools.Tools {
			if t.Name == toolName {
				found = true
				break
			}
		}
		if !found {
			_ = session.Close()
			return nil, goerr.New("MCP server does not provide tool",
				goerr.V("tool", toolName))
		}
	}

	return &ContextAnalyst{
		spec:     spec,
		recorder: recorder,
		session:  session,
		tool:     toolName,
	}, nil
}

// Spec returns the agent's roster entry
func (x *ContextAnalyst) Spec() model.AgentSpec {
	return x.spec
}

// ProcessTask forwards the task to the bound MCP tool
func (x *ContextAnalyst) ProcessTask(ctx context.Context, task string) (*model.Report, error) {
	summary, attempts, err := Do(ctx, x.spec.MaxRetries, retryDelay, func(ctx context.Context) (string, error) {
		if x.spec.Timeout > 0 {
			callCtx, cancel := context.WithTimeout(ctx, x.spec.Timeout)
			defer cancel()
			return x.callTool(callCtx, task)
		}
		return x.callTool(ctx, task)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "task failed",
			goerr.V("agent", x.spec.ID), goerr.V("task", task))
	}

	x.recorder.RecordToolResult(ctx, x.spec.ID, summary, map[string]any{
		"task":     task,
		"attempts": attempts,
		"tool":     x.tool,
	})

	return &model.Report{
		Agent:   x.spec.ID,
		Task:    task,
		Summary: summary,
		Detail:  map[string]any{"tool": x.tool},
	}, nil
}

func (x *ContextAnalyst) callTool(ctx context.Context, task string) (string, error) {
	result, err := x.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      x.tool,
		Arguments: map[string]any{"query": task},
	})
	if err != nil {
		return "", goerr.Wrap(err, "MCP tool call failed", goerr.V("tool", x.tool))
	}
	if result.IsError {
		return "", goerr.New("MCP tool reported an error", goerr.V("tool", x.tool))
	}

	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) == 0 {
		return "", goerr.New("MCP tool returned no text content", goerr.V("tool", x.tool))
	}
	return strings.Join(parts, "\n"), nil
}

// Close shuts the MCP session down
func (x *ContextAnalyst) Close() error {
	return x.session.Close()
}
