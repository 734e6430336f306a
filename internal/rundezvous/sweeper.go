package rundezvous

import (
	"log"
	"time"

	"rundezvous/backend/internal/config"
)

// Sweeper periodically archives rundezvouses that are done but not yet
// closed: travel windows that elapsed without anyone arriving, sessions an
// arrival already ended, and sessions that never left the chat phase.
// Expiration itself is passive (is_expired is computed lazily); the sweep is
// what archives the leftovers.
type Sweeper struct {
	Service  *Service
	Interval time.Duration

	stopCh chan struct{}
}

func NewSweeper(service *Service) *Sweeper {
	return &Sweeper{
		Service:  service,
		Interval: config.SweepInterval,
		stopCh:   make(chan struct{}),
	}
}

// Run blocks, sweeping on every tick until Stop is called. Intended to run
// in its own goroutine from main.
func (w *Sweeper) Run() {
	log.Println("Rundezvous expiry sweeper started.")
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep()
		case <-w.stopCh:
			return
		}
	}
}

// Sweep closes every sweepable rundezvous once.
func (w *Sweeper) Sweep() {
	sweepable, err := w.Service.Storage.ListSweepableRundezvous(w.Service.Now())
	if err != nil {
		return // already logged by storage
	}

	for i := range sweepable {
		rdv := &sweepable[i]
		if err := w.Service.Close(rdv); err != nil {
			log.Printf("ERROR: Failed to close rundezvous %s: %v", rdv.ID, err)
			continue
		}
		log.Printf("Closed rundezvous %s", rdv.ID)
	}
}

func (w *Sweeper) Stop() {
	close(w.stopCh)
}
