package main

import (
	"fmt"
	"io"

	"apkdash/internal/api"
	"apkdash/internal/dashboard"
	"apkdash/internal/record"
)

// pipelineView renders one pipeline's build state as terminal lines.
type pipelineView struct {
	out   io.Writer
	label string
}

func newPipelineView(out io.Writer, pipeline record.Pipeline) *pipelineView {
	return &pipelineView{out: out, label: string(pipeline)}
}

func (v *pipelineView) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(v.out, "[%s] "+format+"\n", append([]any{v.label}, args...)...)
}

func (v *pipelineView) ShowProgress() {
	v.printf("building...")
}

func (v *pipelineView) ShowResult(downloadURL string, remainingSeconds int) {
	v.printf("done: %s (link valid for %ds)", downloadURL, remainingSeconds)
}

// UpdateCountdown prints sparingly so a terminal is not flooded by
// once-a-second ticks: every half minute and through the final seconds.
func (v *pipelineView) UpdateCountdown(remainingSeconds int) {
	if remainingSeconds%30 == 0 || remainingSeconds <= 5 {
		v.printf("download link expires in %ds", remainingSeconds)
	}
}

func (v *pipelineView) ExpireResult() {
	v.printf("download link expired")
}

func (v *pipelineView) ShowError(message string) {
	v.printf("error: %s", message)
}

func (v *pipelineView) Reset() {
	v.printf("ready for a new build")
}

// tabView tracks which pipeline's form is in front.
type tabView struct {
	out    io.Writer
	active record.Pipeline
}

func newTabView(out io.Writer) *tabView {
	return &tabView{out: out, active: record.PipelineURL}
}

func (t *tabView) SwitchTo(pipeline record.Pipeline) {
	if t.active == pipeline {
		return
	}
	t.active = pipeline
	_, _ = fmt.Fprintf(t.out, "switched to the %s build tab\n", pipeline)
}

// statsView renders the server stat and spec cards.
type statsView struct {
	out io.Writer
}

func (v *statsView) RenderStats(stats *api.Stats) {
	_, _ = fmt.Fprintf(v.out, "server: %s | users %d | sessions %d | up %s\n",
		dashboard.QueueLabel(stats.QueueStatus),
		stats.TotalUsers,
		stats.ActiveSessions,
		dashboard.FormatUptime(stats.Uptime),
	)
}

func (v *statsView) RenderSpecs(specs *api.Specs) {
	_, _ = fmt.Fprintf(v.out, "host: %s (%s) | %s x%d | mem %d%% | %s\n",
		dashboard.OSName(specs.OS.Platform),
		specs.OS.Arch,
		specs.CPU.Model,
		specs.CPU.Cores,
		dashboard.MemoryPercent(specs.Memory.Used, specs.Memory.Total),
		specs.Node,
	)
}
