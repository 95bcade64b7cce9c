// Package restore reconstructs the per-pipeline build state after a
// restart from what the record store still holds.
package restore

import (
	"log/slog"
	"time"

	"apkdash/internal/record"
)

// Controller is the subset of the build session controller recovery drives.
type Controller interface {
	RestoreResult(downloadURL string, remainingSeconds int)
	RestoreError(message string)
	RestoreInterrupted()
}

// TabSwitcher activates a pipeline's view so restored state is visible
// without user action.
type TabSwitcher interface {
	SwitchTo(record.Pipeline)
}

// Store is the subset of the record store recovery reads.
type Store interface {
	Get(record.Pipeline) (*record.BuildRecord, error)
	Clear(record.Pipeline) error
}

// Orchestrator runs once at startup, before any poller. It only reads local
// state; no network call happens during recovery.
type Orchestrator struct {
	store       Store
	controllers map[record.Pipeline]Controller
	tabs        TabSwitcher
	log         *slog.Logger

	now func() time.Time
}

func NewOrchestrator(store Store, url, zip Controller, tabs TabSwitcher, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store: store,
		controllers: map[record.Pipeline]Controller{
			record.PipelineURL: url,
			record.PipelineZip: zip,
		},
		tabs: tabs,
		log:  log.With("component", "restore"),
	}
}

// Run restores both pipelines in a fixed order, url then zip.
func (o *Orchestrator) Run() {
	o.restore(record.PipelineURL)
	o.restore(record.PipelineZip)
}

func (o *Orchestrator) restore(pipeline record.Pipeline) {
	rec, err := o.store.Get(pipeline)
	if err != nil {
		o.log.Error("read build record", "pipeline", pipeline, "err", err)
		return
	}
	if rec == nil {
		return
	}
	o.log.Info("found saved build state", "pipeline", pipeline, "status", rec.Status)

	// An archive build surfaces on the archive tab; bring it forward so
	// the restored state is visible.
	if pipeline == record.PipelineZip && o.tabs != nil {
		o.tabs.SwitchTo(pipeline)
	}

	ctrl := o.controllers[pipeline]
	switch rec.Status {
	case record.StatusResult:
		remaining := rec.RemainingSeconds(o.clock()())
		if remaining > 0 {
			ctrl.RestoreResult(rec.DownloadURL, remaining)
			return
		}
		// The window lapsed while nothing was running. Silently drop the
		// record; the form simply starts idle.
		if err = o.store.Clear(pipeline); err != nil {
			o.log.Error("clear build record", "pipeline", pipeline, "err", err)
		}
	case record.StatusProgress:
		// No server-side handle survives a restart, so the build cannot
		// be resumed.
		ctrl.RestoreInterrupted()
	case record.StatusError:
		ctrl.RestoreError(rec.Message)
	}
}

func (o *Orchestrator) clock() func() time.Time {
	if o.now != nil {
		return o.now
	}
	return time.Now
}
