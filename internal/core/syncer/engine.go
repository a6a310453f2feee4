// Package syncer replays the outbox against the live endpoints once
// connectivity is back, in capture order, keeping whatever could not be
// delivered.
package syncer

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/internal/core/mode"
	"github.com/relaykit/relaykit/internal/core/models"
	"github.com/relaykit/relaykit/internal/core/outbox"
	"github.com/relaykit/relaykit/pkg/metrics"
)

// Replayer executes one call against the live endpoints, bypassing the
// offline intercept.
type Replayer interface {
	Replay(ctx context.Context, call models.Call) (models.Result, error)
}

// Report summarizes one sync pass.
type Report struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

type Engine struct {
	modes      *mode.Manager
	outbox     *outbox.Queue
	dispatcher Replayer
	metrics    metrics.Collector

	busy atomic.Bool
}

func NewEngine(modes *mode.Manager, queue *outbox.Queue, dispatcher Replayer,
	collector metrics.Collector) *Engine {
	return &Engine{
		modes:      modes,
		outbox:     queue,
		dispatcher: dispatcher,
		metrics:    collector,
	}
}

// Busy reports whether a sync pass is currently running.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Sync replays every queued request in capture order. Each entry is attempted
// exactly once per pass; entries that fail stay queued for the next pass, in
// their original relative order. Refused outright while in pure-offline mode,
// and while another pass is running.
func (e *Engine) Sync(ctx context.Context) (Report, error) {
	if e.modes.Mode() == mode.ModeOffline {
		return Report{}, faults.New(faults.KindSyncRefused,
			"cannot sync while in offline mode")
	}
	if !e.busy.CompareAndSwap(false, true) {
		return Report{}, faults.New(faults.KindSyncBusy, "sync already in progress")
	}
	defer e.busy.Store(false)

	entries, err := e.outbox.Drain()
	if err != nil {
		return Report{}, err
	}
	if len(entries) == 0 {
		return Report{}, nil
	}

	log.Info().Int("depth", len(entries)).Msg("Starting sync pass")

	var report Report
	var survivors []string
	for _, entry := range entries {
		call := models.Call{
			Path:   entry.URL,
			Method: entry.Method,
			Query:  entry.Query,
		}
		if len(entry.Body) > 0 {
			call.Body = json.RawMessage(entry.Body)
		}

		if _, err := e.dispatcher.Replay(ctx, call); err != nil {
			report.Failed++
			survivors = append(survivors, entry.ID)
			log.Warn().Err(err).Str("id", entry.ID).Str("url", entry.URL).
				Msg("Replay failed, keeping entry queued")
			continue
		}
		report.Synced++
	}

	if err := e.outbox.CommitRemainder(survivors); err != nil {
		return report, err
	}

	e.metrics.RecordSyncPass(report.Synced, report.Failed)
	log.Info().Int("synced", report.Synced).Int("failed", report.Failed).
		Msg("Sync pass complete")
	return report, nil
}
