package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"trade-bot-console-go/internal/journal"
	"trade-bot-console-go/internal/models"
	"trade-bot-console-go/internal/session"
)

// Renderer writes session snapshots as console tables.
type Renderer struct {
	out      io.Writer
	location *time.Location
}

// NewRenderer creates a renderer writing to out, showing times in loc.
func NewRenderer(out io.Writer, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{out: out, location: loc}
}

// loadSuffix marks values that are loading, failed, or not yet known.
func loadSuffix[T any](e session.Entity[T]) string {
	switch e.Load {
	case session.Pending:
		return " (loading...)"
	case session.Failed:
		return " (refresh failed: " + e.Err + ")"
	}
	if !e.Loaded {
		return " (unknown)"
	}
	return ""
}

// Dashboard renders identity, status, balance and configuration.
func (r *Renderer) Dashboard(snap session.Snapshot) {
	if snap.Principal != "" {
		fmt.Fprintf(r.out, "Logged in as: %s\n", snap.Principal)
	}
	if !snap.Ready {
		fmt.Fprintln(r.out, "Loading session...")
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("Trading Bot")
	t.SetStyle(table.StyleRounded)

	status, balance, strategy, threshold := "-", "-", "-", "-"
	if snap.Status.Loaded {
		color := text.FgRed
		if snap.Status.Value == models.Running {
			color = text.FgGreen
		}
		status = color.Sprint(snap.Status.Value.String())
	}
	if snap.Balance.Loaded {
		balance = "$" + snap.Balance.Value.Display()
	}
	if snap.Config.Loaded {
		strategy = snap.Config.Value.Strategy
		threshold = strconv.FormatFloat(snap.Config.Value.Threshold, 'f', -1, 64)
	}

	t.AppendRow(table.Row{"Bot Status", status + loadSuffix(snap.Status)})
	t.AppendRow(table.Row{"Simulated Balance", balance + loadSuffix(snap.Balance)})
	t.AppendRow(table.Row{"Strategy", strategy + loadSuffix(snap.Config)})
	t.AppendRow(table.Row{"Threshold", threshold})
	if snap.Config.Loaded && (snap.Draft.Strategy != strategy || snap.Draft.Threshold != threshold) {
		t.AppendRow(table.Row{"Draft", strings.TrimSpace(snap.Draft.Strategy + " " + snap.Draft.Threshold)})
	}
	if snap.LastDecision != "" {
		t.AppendRow(table.Row{"Last Decision", string(snap.LastDecision)})
	}
	t.Render()
}

// StatusLine prints the bot status as last published, with its load state.
func (r *Renderer) StatusLine(snap session.Snapshot) {
	status := "unknown"
	if snap.Status.Loaded {
		status = snap.Status.Value.String()
	}
	suffix := ""
	if snap.Status.Loaded || snap.Status.Load != session.Idle {
		suffix = loadSuffix(snap.Status)
	}
	fmt.Fprintf(r.out, "Bot Status: %s%s\n", status, suffix)
}

// TradeLogs renders the trade history, most recent first.
func (r *Renderer) TradeLogs(snap session.Snapshot) {
	fmt.Fprintln(r.out, "Trade Logs"+loadSuffix(snap.Logs))
	if len(snap.Logs.Value) == 0 {
		fmt.Fprintln(r.out, "No logs yet.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Time", "Action", "Reason", "Price"})
	for _, entry := range snap.Logs.Value {
		t.AppendRow(table.Row{
			entry.Time().In(r.location).Format("15:04:05"),
			entry.Action,
			entry.Reason,
			fmt.Sprintf("$%g", entry.Price),
		})
	}
	t.Render()
}

// Journal renders this session's recorded actions.
func (r *Renderer) Journal(entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "No actions yet.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Time", "Action", "Input", "Outcome", "Detail"})
	for _, e := range entries {
		detail := e.Result
		if e.Error != "" {
			detail = e.Error
		}
		t.AppendRow(table.Row{e.ID, e.CreatedAt.In(r.location).Format("15:04:05"), e.Kind, e.Input, e.Outcome, detail})
	}
	t.Render()
}
