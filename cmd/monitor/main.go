package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"agentsched/internal/domain"
	"agentsched/internal/report"
	sqlitestore "agentsched/internal/store/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/agentsched.db", "sqlite database path")
	flag.Parse()

	store, err := sqlitestore.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open sqlite store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate sqlite: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()

	runsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	runsTable.SetTitle("Runs (Enter inspect, F5 refresh, F10 quit)").SetBorder(true)

	baselineView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	baselineView.SetTitle("Baseline (CSP)").SetBorder(true)

	optimizedView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	optimizedView.SetTitle("Optimized (GA)").SetBorder(true)

	metricsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	metricsView.SetTitle("Metrics").SetBorder(true)

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(baselineView, 0, 2, false).
		AddItem(optimizedView, 0, 2, false).
		AddItem(metricsView, 0, 2, false)

	mainLayout := tview.NewFlex().
		AddItem(runsTable, 0, 1, true).
		AddItem(right, 0, 2, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 1, true).
		AddItem(statusView, 3, 0, false)

	var runs []domain.ScheduleRun

	setStatus := func(format string, args ...any) {
		statusView.SetText(fmt.Sprintf(format, args...))
	}

	showRun := func(run domain.ScheduleRun) {
		baseline, err := store.GetSchedule(ctx, run.ID, domain.StageBaseline)
		if err != nil {
			setStatus("load baseline: %v", err)
			return
		}
		optimized, err := store.GetSchedule(ctx, run.ID, domain.StageOptimized)
		if err != nil {
			setStatus("load optimized: %v", err)
			return
		}
		baselineView.SetText(renderGantt(baseline))
		optimizedView.SetText(renderGantt(optimized))
		metricsView.SetText(renderMetrics(run, baseline, optimized))
		setStatus("run %s  scenario=%s  created=%s", shortID(run.ID), run.ScenarioName, run.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	refresh := func() {
		loaded, err := store.ListRuns(ctx)
		if err != nil {
			setStatus("list runs: %v", err)
			return
		}
		runs = loaded
		renderRunsTable(runsTable, runs)
		if len(runs) == 0 {
			setStatus("no runs in %s", *dbPath)
			return
		}
		setStatus("%d runs loaded", len(runs))
	}

	runsTable.SetSelectedFunc(func(row, _ int) {
		if row < 1 || row > len(runs) {
			return
		}
		showRun(runs[row-1])
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF5:
			refresh()
			return nil
		case tcell.KeyF10:
			app.Stop()
			return nil
		}
		if event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	refresh()
	if err := app.SetRoot(root, true).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func renderRunsTable(table *tview.Table, runs []domain.ScheduleRun) {
	table.Clear()
	headers := []string{"Run", "Scenario", "Tasks", "CSP", "GA", "Created"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, r := range runs {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(shortID(r.ID)))
		table.SetCell(row, 1, tview.NewTableCell(r.ScenarioName))
		table.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", r.TaskCount)))
		table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", r.BaselineMakespan)))
		table.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%d", r.OptimizedMakespan)))
		table.SetCell(row, 5, tview.NewTableCell(r.CreatedAt.Format("15:04:05")))
	}
}

// renderGantt draws one bar row per agent, one three-column cell per time
// unit, with the task identifier repeated across its span and "." for idle.
func renderGantt(s domain.Schedule) string {
	if len(s.Assignments) == 0 {
		return "No assignments"
	}

	byAgent := make(map[string][]domain.Assignment)
	for _, a := range s.Assignments {
		byAgent[a.AgentID] = append(byAgent[a.AgentID], a)
	}
	agents := make([]string, 0, len(byAgent))
	for id := range byAgent {
		agents = append(agents, id)
	}
	sort.Strings(agents)

	makespan := s.Makespan()
	var b strings.Builder

	b.WriteString("      ")
	for t := 0; t < makespan; t++ {
		if t%5 == 0 {
			b.WriteString(fmt.Sprintf("%-3d", t))
		} else {
			b.WriteString("   ")
		}
	}
	b.WriteString("\n")

	for _, agentID := range agents {
		cells := make([]string, makespan)
		for i := range cells {
			cells[i] = " . "
		}
		for _, a := range byAgent[agentID] {
			label := ganttLabel(a.TaskID)
			for t := a.Start; t < a.End && t < makespan; t++ {
				cells[t] = label
			}
		}
		b.WriteString(fmt.Sprintf("%-5s|%s|\n", agentID, strings.Join(cells, "")))
	}
	return b.String()
}

func ganttLabel(taskID string) string {
	if len(taskID) > 3 {
		taskID = taskID[:3]
	}
	return fmt.Sprintf("%-3s", taskID)
}

func renderMetrics(run domain.ScheduleRun, baseline, optimized domain.Schedule) string {
	roster := agentRoster(baseline, optimized)
	comparison := report.Compare(
		report.Compute(roster, baseline),
		report.Compute(roster, optimized),
	)

	var b strings.Builder
	fmt.Fprintf(&b, "baseline makespan:  %d\n", comparison.Baseline.Makespan)
	fmt.Fprintf(&b, "optimized makespan: %d\n", comparison.Optimized.Makespan)
	fmt.Fprintf(&b, "improvement: %d time units (%.1f%%)\n", comparison.Improvement, comparison.ImprovementPct)
	fmt.Fprintf(&b, "generations: %d\n\n", run.Generations)
	b.WriteString("agent            tasks  busy  idle  util\n")
	for _, am := range comparison.Optimized.Agents {
		fmt.Fprintf(&b, "%-15s %5d %5d %5d %4.0f%%\n",
			am.AgentID, am.TaskCount, am.BusyTime, am.IdleTime, am.Utilization*100)
	}
	return b.String()
}

// agentRoster derives the agent list from persisted assignments; the monitor
// has no scenario file, only what the store kept.
func agentRoster(schedules ...domain.Schedule) domain.Scenario {
	seen := make(map[string]bool)
	var agents []domain.Agent
	for _, s := range schedules {
		for _, a := range s.Assignments {
			if !seen[a.AgentID] {
				seen[a.AgentID] = true
				agents = append(agents, domain.Agent{ID: a.AgentID})
			}
		}
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return domain.Scenario{Agents: agents}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
