package treereplace

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// RunCmdOptions contains options for customizing RunCmd behavior
type RunCmdOptions struct {
	// MCPTransport allows providing a custom transport for MCP server (used for testing)
	MCPTransport *mcp.InMemoryTransport
	// Stdout writer for normal output (defaults to os.Stdout)
	Stdout io.Writer
	// Stderr writer for error output (defaults to os.Stderr)
	Stderr io.Writer
}

// commandContext holds runtime context for command execution
type commandContext struct {
	stdout io.Writer
	stderr io.Writer
	engine Engine
	config *Config
}

func RunCmd(args []string) error {
	return RunCmdWithOptions(args, nil)
}

func RunCmdWithOptions(args []string, options *RunCmdOptions) error {
	stdout := io.Writer(os.Stdout)
	stderr := io.Writer(os.Stderr)
	if options != nil {
		if options.Stdout != nil {
			stdout = options.Stdout
		}
		if options.Stderr != nil {
			stderr = options.Stderr
		}
	}

	if len(args) < 1 {
		return ShowHelp(stdout)
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		help       = fs.Bool("h", false, "Show help")
		mcpOption  = fs.Bool("mcp", false, "Run as MCP server")
		configFile = fs.String("config", "", "Path to configuration file")
	)

	if len(args) > 1 {
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
	}

	if *help {
		return ShowHelp(stdout)
	}

	if *mcpOption {
		var transport *mcp.InMemoryTransport
		if options != nil && options.MCPTransport != nil {
			transport = options.MCPTransport
		}
		return RunMCPServer(*configFile, transport)
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		return ShowHelp(stdout)
	}

	config, err := LoadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, err := NewDefaultEngine(config)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	cmdCtx := &commandContext{
		stdout: stdout,
		stderr: stderr,
		engine: engine,
		config: config,
	}

	ctx := context.Background()

	switch remaining[0] {
	case "scan":
		return scanCommand(ctx, cmdCtx, remaining[1:])
	case "apply":
		return applyCommand(ctx, cmdCtx, remaining[1:])
	case "backup":
		return backupCommand(ctx, cmdCtx, remaining[1:])
	case "serve":
		return serveCommand(ctx, cmdCtx, remaining[1:])
	default:
		return fmt.Errorf("unknown command: %s", remaining[0])
	}
}

func ShowHelp(w io.Writer) error {
	help := `tree-replace - Bulk substring replacement across folder names, file names and file contents

Usage:
  tree-replace [OPTIONS] COMMAND [ARGS...]
  tree-replace -mcp             Run as MCP server

Options:
  -h                   Show this help message
  --config FILE        Path to configuration file
  -mcp                 Run as MCP server

Commands:
  scan         Preview which entries match, without changing anything
  apply        Apply the replacement (dry run unless --confirm=APPLY)
  backup       Package the tree into a zip archive beside it
  serve        Run the HTTP upload mode

Examples:
  tree-replace scan --root=./tasks --old=old-name
  tree-replace apply --root=./tasks --old=old-name --new=new-name --backup --confirm=APPLY
  tree-replace apply --root=./tasks --old=old-name --new=new-name --json
  tree-replace backup --root=./tasks
  tree-replace serve --addr=:8080
  tree-replace -mcp --config=config.yaml

Destructive operations require --confirm=APPLY, exactly and case-sensitively.
Without it every apply is a dry run, whatever other flags say.
`
	_, _ = fmt.Fprint(w, help)
	return nil
}

func scanCommand(ctx context.Context, cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.stderr)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	root := fs.String("root", cwd, "Root directory to scan")
	old := fs.String("old", "", "Substring to search for")
	new := fs.String("new", "", "Replacement substring")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *old == "" {
		return fmt.Errorf("--old is required")
	}

	scan, err := cmdCtx.engine.Scan(ctx, *root, *old, *new)
	if err != nil {
		return err
	}

	if *jsonOutput {
		return json.NewEncoder(cmdCtx.stdout).Encode(scan)
	}

	_, _ = fmt.Fprintf(cmdCtx.stdout, "\nFiles with content matches: %d\n", len(scan.ContentFiles))
	for _, path := range scan.ContentFiles {
		_, _ = fmt.Fprintf(cmdCtx.stdout, "  %s\n", path)
	}

	_, _ = fmt.Fprintf(cmdCtx.stdout, "\nFiles with names to rename: %d\n", len(scan.FileRenames))
	for _, c := range sortDeepestFirst(scan.FileRenames) {
		_, _ = fmt.Fprintf(cmdCtx.stdout, "  %s -> %s\n", c.Source, c.Dest)
	}

	_, _ = fmt.Fprintf(cmdCtx.stdout, "\nFolders to rename: %d\n", len(scan.FolderRenames))
	for _, c := range sortDeepestFirst(scan.FolderRenames) {
		_, _ = fmt.Fprintf(cmdCtx.stdout, "  %s -> %s\n", c.Source, c.Dest)
	}

	return nil
}

func applyCommand(ctx context.Context, cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.stderr)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	root := fs.String("root", cwd, "Root directory to operate on")
	old := fs.String("old", "", "Substring to search for")
	new := fs.String("new", "", "Replacement substring")
	backup := fs.Bool("backup", false, "Create a zip backup before applying")
	confirm := fs.String("confirm", "", "Type APPLY to authorize destructive actions")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *old == "" {
		return fmt.Errorf("--old is required")
	}

	params := ReplaceParams{
		Old:          *old,
		New:          *new,
		CreateBackup: *backup,
		Confirm:      *confirm,
	}

	result, err := cmdCtx.engine.Apply(ctx, *root, params)
	if err != nil {
		return err
	}

	if *jsonOutput {
		return json.NewEncoder(cmdCtx.stdout).Encode(result)
	}

	for _, line := range result.Log {
		_, _ = fmt.Fprintln(cmdCtx.stdout, line)
	}

	if result.DryRun {
		_, _ = fmt.Fprintln(cmdCtx.stdout, "\nDry run complete. Re-run with --confirm=APPLY to perform the operations.")
	}

	return nil
}

func backupCommand(ctx context.Context, cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.stderr)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	root := fs.String("root", cwd, "Root directory to package")

	if err := fs.Parse(args); err != nil {
		return err
	}

	validator := NewDefaultValidator(cmdCtx.config)
	if err := validator.ValidatePath(*root); err != nil {
		return err
	}

	path, err := Backup(ctx, *root, cmdCtx.config.BackupPrefix)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmdCtx.stdout, "Backup created: %s\n", path)
	return nil
}

func serveCommand(ctx context.Context, cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.stderr)

	addr := fs.String("addr", cmdCtx.config.ListenAddr, "Address to listen on")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmdCtx.config.ListenAddr = *addr

	logger := zerolog.New(cmdCtx.stderr).With().Timestamp().Logger()
	server, err := NewServer(cmdCtx.config, logger)
	if err != nil {
		return err
	}

	return server.ListenAndServe()
}
