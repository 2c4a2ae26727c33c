// Package cron provides a fallback periodic reconciliation of the hotword
// settings file, in case an external edit lands between the primary
// SIGHUP-triggered reload points. Grounded on the teacher's robfig/cron
// scheduling block in main.go.
package cron

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"subtitle-pipeline/internal/store"
)

// Scheduler wraps a robfig/cron instance dedicated to settings reload.
type Scheduler struct {
	c *cron.Cron
}

// NewHotwordSettingsReloader schedules settings.Reload() on the given cron
// spec (standard 5-field, e.g. "*/5 * * * *"). The caller must call Start.
func NewHotwordSettingsReloader(spec string, settings *store.SettingsCoordinator) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		settings.Reload()
		log.Debug().Msg("hotword settings reloaded from disk (cron fallback)")
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{c: c}, nil
}

// Start begins running the scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
