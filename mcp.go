package treereplace

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Parameter structures for MCP tools
type ScanTreeParams struct {
	Root string `json:"root"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

type ApplyReplaceParams struct {
	Root         string `json:"root"`
	Old          string `json:"old"`
	New          string `json:"new"`
	CreateBackup bool   `json:"create_backup"`
	Confirm      string `json:"confirm"`
}

// Tool handler functions
func ScanTreeTool(ctx context.Context, req *mcp.CallToolRequest, args ScanTreeParams, engine Engine) (*mcp.CallToolResult, any, error) {
	result, err := engine.Scan(ctx, args.Root, args.Old, args.New)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan tree: %w", err)
	}

	return nil, result, nil
}

// ApplyReplaceTool runs the mutation protocol. The confirmation gate is
// enforced here exactly as everywhere else: unless confirm is the exact
// literal APPLY, the run is a dry run and nothing on disk changes.
func ApplyReplaceTool(ctx context.Context, req *mcp.CallToolRequest, args ApplyReplaceParams, engine Engine) (*mcp.CallToolResult, any, error) {
	params := ReplaceParams{
		Old:          args.Old,
		New:          args.New,
		CreateBackup: args.CreateBackup,
		Confirm:      args.Confirm,
	}

	result, err := engine.Apply(ctx, args.Root, params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply replacement: %w", err)
	}

	return nil, result, nil
}

// RunMCPServer starts the MCP server implementation using the official Go SDK
// If transport is nil, it will use stdio transport
func RunMCPServer(configPath string, transport *mcp.InMemoryTransport) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, err := NewDefaultEngine(config)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// Create MCP server
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tree-replace",
		Version: "1.0.0",
	}, nil)

	// Register all MCP tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_tree",
		Description: "Preview which files, folders and file contents match a substring",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ScanTreeParams) (*mcp.CallToolResult, any, error) {
		return ScanTreeTool(ctx, req, args, engine)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_replace",
		Description: "Apply a bulk substring replacement across names and contents (requires confirm=APPLY)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ApplyReplaceParams) (*mcp.CallToolResult, any, error) {
		return ApplyReplaceTool(ctx, req, args, engine)
	})

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Use provided transport or default to stdio
	if transport != nil {
		// Use the provided InMemoryTransport for testing
		return server.Run(ctx, transport)
	} else {
		// Use stdio transport for production
		return server.Run(ctx, &mcp.StdioTransport{})
	}
}
