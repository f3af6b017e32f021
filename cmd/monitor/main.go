package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"agentsim/internal/domain"
)

type client struct {
	baseURL string
	http    *http.Client
}

type embeddedSimulator struct {
	cmd *exec.Cmd
}

func main() {
	addr := flag.String("addr", "http://localhost:8092", "simulator base URL")
	interval := flag.Duration("interval", 2*time.Second, "refresh interval")
	embedded := flag.Bool("embedded", true, "start simulator in the same monitor process lifecycle")
	simulatorBinary := flag.String("simulator-bin", "", "path to simulator binary (optional in embedded mode)")
	dbPath := flag.String("db", "data/embedded.db", "sqlite db path for embedded simulator")
	flag.Parse()

	c := &client{
		baseURL: strings.TrimRight(*addr, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	var embeddedProc *embeddedSimulator
	var err error
	if *embedded {
		embeddedProc, err = startEmbeddedSimulator(*addr, *simulatorBinary, *dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start embedded simulator: %v\n", err)
			os.Exit(1)
		}
		defer embeddedProc.Stop()
	}

	if err := waitHealth(c, 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "simulator health check failed: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()
	runsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	runsTable.SetTitle("Runs (Enter inspect, F5 refresh, F10 quit)").SetBorder(true)

	detailView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	detailView.SetTitle("Run Detail").SetBorder(true)

	selectionsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	selectionsView.SetTitle("Selections").SetBorder(true)

	promptInput := tview.NewInputField().
		SetLabel("Run: <architecture> [agents] [team_size]: ")
	promptInput.SetBorder(true).SetTitle("Enter = run ad-hoc scenario")

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf(
		"Connected to %s | embedded=%t | shortcuts: F10 quit, F5 refresh, Ctrl+L focus prompt, Ctrl+T focus runs",
		c.baseURL,
		*embedded,
	))

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(detailView, 0, 2, false).
		AddItem(selectionsView, 0, 1, false)

	mainLayout := tview.NewFlex().
		AddItem(runsTable, 0, 1, false).
		AddItem(right, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, false).
		AddItem(promptInput, 3, 0, true).
		AddItem(statusView, 3, 0, false)

	var selectedRunID string
	var lastRuns []domain.Run
	var detailsVersion uint64

	setStatusUI := func(msg string) {
		statusView.SetText(msg)
	}
	setStatusAsync := func(msg string) {
		app.QueueUpdateDraw(func() {
			statusView.SetText(msg)
		})
	}

	refreshRuns := func() {
		runs, err := c.listRuns()
		if err != nil {
			app.QueueUpdateDraw(func() {
				runsTable.Clear()
				runsTable.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("load error: %v", err)).SetTextColor(tview.Styles.ContrastSecondaryTextColor))
			})
			return
		}
		lastRuns = runs
		app.QueueUpdateDraw(func() {
			renderRunsTable(runsTable, runs, selectedRunID)
		})

		selections, err := c.listSelections()
		app.QueueUpdateDraw(func() {
			if err != nil {
				selectionsView.SetText(fmt.Sprintf("error: %v", err))
				return
			}
			selectionsView.SetText(renderSelections(selections))
		})
	}

	refreshDetailAsync := func(runID string) {
		if strings.TrimSpace(runID) == "" {
			return
		}
		version := atomic.AddUint64(&detailsVersion, 1)
		app.QueueUpdateDraw(func() {
			detailView.SetText("Loading...")
		})

		go func(selected string, v uint64) {
			run, err := c.getRun(selected)
			if atomic.LoadUint64(&detailsVersion) != v {
				return
			}
			app.QueueUpdateDraw(func() {
				if selected != selectedRunID {
					return
				}
				if err != nil {
					detailView.SetText(fmt.Sprintf("error: %v", err))
					return
				}
				detailView.SetText(renderRunDetail(run))
			})
		}(runID, version)
	}

	submitPrompt := func(prompt string) {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			return
		}
		setStatusUI("Submitting scenario...")
		promptInput.SetText("")
		go func(input string) {
			runID, err := c.runAdHocScenario(input)
			if err != nil {
				setStatusAsync("Failed to run scenario: " + err.Error())
				return
			}
			selectedRunID = runID
			refreshRuns()
			refreshDetailAsync(selectedRunID)
			setStatusAsync("Run finished: " + runID)
		}(prompt)
	}

	promptInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		submitPrompt(promptInput.GetText())
	})

	runsTable.SetSelectedFunc(func(row, _ int) {
		if row <= 0 || row > len(lastRuns) {
			return
		}
		selectedRunID = lastRuns[row-1].ID
		refreshDetailAsync(selectedRunID)
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if app.GetFocus() == promptInput {
			if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyTAB {
				app.SetFocus(runsTable)
				setStatusUI("Focus -> runs")
				return nil
			}
			return event
		}

		if event.Key() == tcell.KeyEscape {
			app.SetFocus(runsTable)
			setStatusUI("Focus -> runs")
			return nil
		}
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyF5:
			refreshRuns()
			refreshDetailAsync(selectedRunID)
			setStatusUI("Manual refresh complete")
			return nil
		case tcell.KeyCtrlL:
			app.SetFocus(promptInput)
			setStatusUI("Focus -> prompt")
			return nil
		case tcell.KeyCtrlT:
			app.SetFocus(runsTable)
			setStatusUI("Focus -> runs")
			return nil
		}
		if event.Key() == tcell.KeyTAB {
			app.SetFocus(promptInput)
			return nil
		}
		if event.Key() == tcell.KeyRune {
			app.SetFocus(promptInput)
			return event
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		refreshRuns()
		if len(lastRuns) > 0 {
			selectedRunID = lastRuns[0].ID
			refreshDetailAsync(selectedRunID)
		}

		for range ticker.C {
			refreshRuns()
			if selectedRunID == "" && len(lastRuns) > 0 {
				selectedRunID = lastRuns[0].ID
			}
			refreshDetailAsync(selectedRunID)
		}
	}()

	if err := app.SetRoot(root, true).EnableMouse(true).SetFocus(promptInput).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func waitHealth(c *client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/healthz", nil)
		if err == nil {
			resp, err := c.http.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode < 300 {
					return nil
				}
			}
		}
		time.Sleep(400 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for /healthz")
}

func startEmbeddedSimulator(addr string, simulatorBinary string, dbPath string) (*embeddedSimulator, error) {
	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse addr: %w", err)
	}
	port := parsed.Port()
	if port == "" {
		return nil, fmt.Errorf("addr must include explicit port, got %q", addr)
	}
	addrArg := ":" + port

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	var cmd *exec.Cmd
	if strings.TrimSpace(simulatorBinary) != "" {
		cmd = exec.Command(simulatorBinary, "--addr", addrArg, "--db", dbPath)
	} else {
		self, err := os.Executable()
		if err == nil {
			sibling := filepath.Join(filepath.Dir(self), "simulator")
			if fileExists(sibling) {
				cmd = exec.Command(sibling, "--addr", addrArg, "--db", dbPath)
			}
		}
		if cmd == nil {
			cmd = exec.Command("go", "run", "./cmd/simulator", "--addr", addrArg, "--db", dbPath)
			cwd, _ := os.Getwd()
			cmd.Dir = cwd
		}
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start simulator process: %w", err)
	}

	proc := &embeddedSimulator{cmd: cmd}
	return proc, nil
}

func (e *embeddedSimulator) Stop() {
	if e == nil || e.cmd == nil || e.cmd.Process == nil {
		return
	}
	_ = e.cmd.Process.Kill()
	_, _ = e.cmd.Process.Wait()
}

func renderRunsTable(table *tview.Table, runs []domain.Run, selectedRunID string) {
	table.Clear()
	headers := []string{"Run", "Scenario", "Architecture", "OK", "Tokens", "Created"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, r := range runs {
		row := i + 1
		ok := "yes"
		if !r.Success {
			ok = "no"
		}
		table.SetCell(row, 0, tview.NewTableCell(shortID(r.ID)))
		table.SetCell(row, 1, tview.NewTableCell(trimLine(r.Scenario, 24)))
		table.SetCell(row, 2, tview.NewTableCell(string(r.Architecture)))
		table.SetCell(row, 3, tview.NewTableCell(ok))
		table.SetCell(row, 4, tview.NewTableCell(strconv.Itoa(r.TokensUsed)))
		table.SetCell(row, 5, tview.NewTableCell(r.CreatedAt.Local().Format("15:04:05")))
		if r.ID == selectedRunID {
			table.Select(row, 0)
		}
	}
}

func renderRunDetail(run domain.Run) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Run %s  scenario=%s architecture=%s agents=%d\n",
		shortID(run.ID), run.Scenario, run.Architecture, run.NumAgents))
	b.WriteString(fmt.Sprintf("success=%t tokens=%d duration=%dms\n", run.Success, run.TokensUsed, run.DurationMS))
	if run.Error != "" {
		b.WriteString("error: " + trimLine(run.Error, 120) + "\n")
	}
	if run.Output != "" {
		b.WriteString("output: " + trimLine(run.Output, 120) + "\n")
	}
	if m := run.Metrics; m != nil {
		b.WriteString(fmt.Sprintf(
			"\nefficiency=%.3f overhead=%.3f amplification=%.2f redundancy=%.3f\n",
			m.Efficiency, m.Overhead, m.ErrorAmplification, m.Redundancy,
		))
	}
	if len(run.Agents) > 0 {
		b.WriteString("\nAgents:\n")
		for _, a := range run.Agents {
			b.WriteString(fmt.Sprintf(
				"  %-28s tokens=%-6d done=%-3d errors=%-3d sent=%-3d recv=%d\n",
				trimLine(a.AgentID, 28), a.TokensUsed, a.TasksCompleted, a.ErrorsCount,
				a.MessagesSent, a.MessagesReceived,
			))
		}
	}
	return b.String()
}

func renderSelections(items []domain.Selection) string {
	if len(items) == 0 {
		return "No selections"
	}
	var b strings.Builder
	for _, s := range items {
		b.WriteString(fmt.Sprintf(
			"[%s] %s -> %s\n",
			s.CreatedAt.Local().Format("15:04:05"),
			shortID(s.ID),
			s.Selected,
		))
		for _, line := range s.Reasoning {
			b.WriteString("  " + trimLine(line, 100) + "\n")
		}
	}
	return b.String()
}

// runAdHocScenario turns a prompt like "centralized 4" or "hybrid 6 2" into
// a sequence scenario and submits it.
func (c *client) runAdHocScenario(prompt string) (string, error) {
	fields := strings.Fields(prompt)
	architecture := fields[0]
	agents := 3
	teamSize := 1
	if len(fields) > 1 {
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("invalid agent count %q", fields[1])
		}
		agents = v
	}
	if len(fields) > 2 {
		v, err := strconv.Atoi(fields[2])
		if err != nil {
			return "", fmt.Errorf("invalid team size %q", fields[2])
		}
		teamSize = v
	}

	req := map[string]any{
		"name":         fmt.Sprintf("adhoc-%s", architecture),
		"architecture": architecture,
		"agents":       agents,
		"team_size":    teamSize,
		"task": map[string]any{
			"kind":  "sequence",
			"units": agents,
		},
	}
	var run domain.Run
	if err := c.postJSON("/simulate", req, &run); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (c *client) listRuns() ([]domain.Run, error) {
	var out []domain.Run
	if err := c.getJSON("/runs", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) getRun(runID string) (domain.Run, error) {
	var out domain.Run
	if err := c.getJSON("/runs/"+runID, &out); err != nil {
		return domain.Run{}, err
	}
	return out, nil
}

func (c *client) listSelections() ([]domain.Selection, error) {
	var out []domain.Selection
	if err := c.getJSON("/selections", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	return nil
}

func (c *client) postJSON(path string, in any, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	return nil
}

func trimLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func shortID(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
