package tunable

import (
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Tunable is a value adjusted in fixed steps at run time.  It is stored as a
// whole number of steps so that repeated adjustments do not drift.
type Tunable struct {
	Name  string
	Step  float64
	steps int64
}

// Add moves the value by delta steps.
func (t *Tunable) Add(delta int) float64 {
	return float64(atomic.AddInt64(&t.steps, int64(delta))) * t.Step
}

func (t *Tunable) Get() float64 {
	return float64(atomic.LoadInt64(&t.steps)) * t.Step
}

func (t *Tunable) Set(v float64) {
	atomic.StoreInt64(&t.steps, int64(math.Round(v/t.Step)))
}

type Tunables struct {
	All      []*Tunable
	selected int
	log      zerolog.Logger
}

func New(log zerolog.Logger) *Tunables {
	return &Tunables{
		log: log.With().Str("component", "tunables").Logger(),
	}
}

func (t *Tunables) Create(name string, value, step float64) *Tunable {
	newTunable := &Tunable{
		Name: name,
		Step: step,
	}
	newTunable.Set(value)
	t.All = append(t.All, newTunable)
	return newTunable
}

func (t *Tunables) SelectNext() {
	t.selected++
	if t.selected >= len(t.All) {
		t.selected = 0
	}
	t.logSelected()
}

func (t *Tunables) SelectPrev() {
	t.selected--
	if t.selected < 0 {
		t.selected = len(t.All) - 1
	}
	t.logSelected()
}

// Adjust moves the selected tunable by delta steps.
func (t *Tunables) Adjust(delta int) {
	c := t.Current()
	v := c.Add(delta)
	t.log.Info().Str("tunable", c.Name).Float64("value", v).Msg("Tunable adjusted")
}

func (t *Tunables) Current() *Tunable {
	return t.All[t.selected]
}

func (t *Tunables) logSelected() {
	c := t.Current()
	t.log.Info().Str("tunable", c.Name).Float64("value", c.Get()).Msg("Tunable selected")
}

// Dump logs every tunable, so a tuned run can be copied into the config.
func (t *Tunables) Dump() {
	for _, c := range t.All {
		t.log.Info().Str("tunable", c.Name).Float64("value", c.Get()).Msg("Tunable")
	}
}
