// Package cli implements the interactive console for Craftctl. It
// exposes the managed server's commands plus local inspection of the
// audit log and host status.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/craftctl-project/craftctl/internal/config"
	"github.com/craftctl-project/craftctl/internal/db"
	"github.com/craftctl-project/craftctl/internal/rcon"
	"github.com/craftctl-project/craftctl/internal/util"
)

// CLI provides the interactive command loop. history may be nil when
// the audit log is disabled; shutdown is invoked on "quit".
type CLI struct {
	cfg      *config.Config
	client   *rcon.Client
	history  *db.HistoryDatabase
	shutdown func()
}

// NewCLI creates a new CLI handler.
func NewCLI(cfg *config.Config, client *rcon.Client, history *db.HistoryDatabase, shutdown func()) *CLI {
	return &CLI{
		cfg:      cfg,
		client:   client,
		history:  history,
		shutdown: shutdown,
	}
}

// Start begins the interactive loop. It returns when stdin closes, the
// user quits, or ctx is cancelled.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nCraftctl ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Print("craftctl> ")

		var line string
		var open bool
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, open = <-lines:
			if !open {
				return
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "quit" || cmd == "exit" || cmd == "q" {
			fmt.Println("Shutting down Craftctl...")
			c.shutdown()
			return
		}

		if err := c.execute(ctx, cmd, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "players", "list", "p":
		return c.cmdPlayers(ctx)
	case "tick", "t":
		return c.cmdTick(ctx)
	case "save":
		return c.cmdSave(ctx)
	case "stop":
		return c.cmdStop(ctx)
	case "cmd", "c":
		return c.cmdRaw(ctx, args)
	case "history":
		return c.cmdHistory(args)
	case "status", "s":
		c.printStatus()
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println("\n╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   Craftctl Commands                      ║")
	fmt.Println("╠══════════════════════════════════════════════════════════╣")
	fmt.Println("║  players            List players currently online        ║")
	fmt.Println("║  tick               Show server tick timing stats        ║")
	fmt.Println("║  save               Flush all world data to disk         ║")
	fmt.Println("║  stop               Shut the Minecraft server down       ║")
	fmt.Println("║  cmd <command...>   Run a raw console command            ║")
	fmt.Println("║  history [n]        Show the last n commands (default 10)║")
	fmt.Println("║  status             Show connection and host status      ║")
	fmt.Println("║  quit               Shutdown Craftctl                    ║")
	fmt.Println("║  help               Show this help message               ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func (c *CLI) cmdPlayers(ctx context.Context) error {
	players, err := c.client.ListPlayers(ctx)
	c.record("list", strings.Join(players, ", "), err)
	if err != nil {
		return err
	}

	if len(players) == 0 {
		fmt.Println("No players online.")
		return nil
	}

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"#", "Player"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for i, name := range players {
		tw.Append([]string{strconv.Itoa(i + 1), name})
	}
	tw.Render()
	fmt.Printf("%d player(s) online.\n\n", len(players))
	return nil
}

func (c *CLI) cmdTick(ctx context.Context) error {
	stats, err := c.client.QueryTickStats(ctx)
	if err != nil {
		c.record("tick query", "", err)
		return err
	}
	c.record("tick query", stats.Average, nil)

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Average", "Target", "P50", "P95", "P99"})
	tw.SetBorder(true)
	tw.Append([]string{stats.Average, stats.Target, stats.P50, stats.P95, stats.P99})
	tw.Render()
	fmt.Println()
	return nil
}

func (c *CLI) cmdSave(ctx context.Context) error {
	err := c.client.SaveAll(ctx)
	c.record("save-all", "", err)
	if err != nil {
		return err
	}
	fmt.Println("World saved.")
	return nil
}

func (c *CLI) cmdStop(ctx context.Context) error {
	err := c.client.Stop(ctx)
	c.record("stop", "", err)
	if err != nil {
		return err
	}
	fmt.Println("Stop command sent; the server is shutting down.")
	return nil
}

func (c *CLI) cmdRaw(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: cmd <command...>")
	}

	command := strings.Join(args, " ")
	response, err := c.client.Command(ctx, command)
	c.record(command, response, err)
	if err != nil {
		return err
	}

	if response == "" {
		fmt.Println("(no response)")
	} else {
		fmt.Println(response)
	}
	return nil
}

func (c *CLI) cmdHistory(args []string) error {
	if c.history == nil {
		return fmt.Errorf("command history is disabled")
	}

	limit := 10
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		limit = parsed
	}

	entries, err := c.history.Recent(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Time", "Source", "Command", "OK"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, e := range entries {
		ok := "yes"
		if !e.Success {
			ok = "no"
		}
		tw.Append([]string{
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Source,
			e.Command,
			ok,
		})
	}
	tw.Render()
	fmt.Println()
	return nil
}

// printStatus displays the configured endpoint and host figures.
func (c *CLI) printStatus() {
	server := c.cfg.GetServer()
	sysInfo := util.GetSystemInfo()

	fmt.Printf("\n  Server:       %s:%d\n", server.Host, server.RconPort)
	fmt.Printf("  Level:        %s\n", server.LevelName)
	fmt.Printf("  Host:         %s (%s/%s)\n", sysInfo.Hostname, sysInfo.Platform, sysInfo.Architecture)
	fmt.Printf("  CPU:          %s (%d cores)\n", sysInfo.CPUModel, sysInfo.CPUCores)

	if cpu, err := util.GetCPUUsage(); err == nil {
		fmt.Printf("  CPU Usage:    %.1f%%\n", cpu)
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		fmt.Printf("  Memory:       %d / %d MB (%.1f%%)\n", mem.Used, mem.Total, mem.UsedPercent)
	}
	if disk, err := util.GetDiskUsage("."); err == nil {
		fmt.Printf("  Disk:         %d / %d GB (%.1f%%)\n", disk.Used, disk.Total, disk.UsedPercent)
	}
	fmt.Println()
}

// record stores a command exchange in the audit log, if enabled.
func (c *CLI) record(command, response string, err error) {
	if c.history == nil {
		return
	}
	if err != nil {
		response = err.Error()
	}
	if recErr := c.history.Record(command, response, db.SourceCLI, err == nil); recErr != nil {
		log.Warn().Err(recErr).Msg("failed to record command history")
	}
}
