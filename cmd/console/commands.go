package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"trade-bot-console-go/internal/journal"
	"trade-bot-console-go/internal/render"
	"trade-bot-console-go/internal/session"
)

const helpText = `Commands:
  status                      show bot status, balance and configuration
  logs                        show trade logs, most recent first
  toggle                      start a stopped bot or stop a running one
  analyze <p1,p2,p3,...>      submit a price history (at least 3 prices)
  draft <strategy> <value>    edit the configuration locally
  config [<strategy> <value>] send the draft (or the given values) to the bot
  refresh                     re-read everything from the bot
  login                       retry logging in
  history                     show this session's actions
  help                        show this help
  quit                        leave`

// Console dispatches console commands to the session controller.
type Console struct {
	controller *session.Controller
	journal    *journal.Journal
	renderer   *render.Renderer
	out        io.Writer
}

// Help prints the command list.
func (c *Console) Help() {
	fmt.Fprintln(c.out, helpText)
}

// Execute runs one command line and reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	cmd, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "":
	case "status":
		c.renderer.Dashboard(c.controller.Snapshot())
	case "logs":
		c.renderer.TradeLogs(c.controller.Snapshot())
	case "toggle":
		if _, err := c.controller.Toggle(ctx); err != nil {
			c.fail(err)
		}
		c.renderer.StatusLine(c.controller.Snapshot())
	case "analyze":
		decision, err := c.controller.Submit(ctx, args)
		if err != nil {
			c.fail(err)
			return false
		}
		fmt.Fprintf(c.out, "Decision: %s\n", decision)
	case "draft":
		strategy, threshold, ok := splitConfigArgs(args)
		if !ok {
			fmt.Fprintln(c.out, "usage: draft <strategy> <threshold>")
			return false
		}
		c.controller.SetDraft(strategy, threshold)
	case "config":
		strategy, threshold, ok := splitConfigArgs(args)
		if !ok {
			if args != "" {
				fmt.Fprintln(c.out, "usage: config [<strategy> <threshold>]")
				return false
			}
			draft := c.controller.Snapshot().Draft
			strategy, threshold = draft.Strategy, draft.Threshold
		}
		if _, err := c.controller.UpdateConfig(ctx, strategy, threshold); err != nil {
			c.fail(err)
			return false
		}
		fmt.Fprintln(c.out, "Configuration updated!")
	case "refresh":
		if err := c.controller.Refresh(ctx); err != nil {
			c.fail(err)
		}
		c.renderer.Dashboard(c.controller.Snapshot())
	case "login":
		if res := c.controller.Login(ctx); res.Authenticated() {
			fmt.Fprintf(c.out, "Logged in as: %s\n", res.Principal)
		} else {
			fmt.Fprintln(c.out, "Continuing anonymously.")
		}
	case "history":
		entries, err := c.journal.Recent(50)
		if err != nil {
			c.fail(err)
			return false
		}
		c.renderer.Journal(entries)
	case "help":
		c.Help()
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q, try help\n", cmd)
	}
	return false
}

func (c *Console) fail(err error) {
	if session.IsValidation(err) {
		fmt.Fprintf(c.out, "Input rejected: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Error: %v\n", err)
}

func splitConfigArgs(args string) (strategy, threshold string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}
