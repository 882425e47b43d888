package data

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is the initial population of a world plus the user events
// queued against it.
type Scenario struct {
	Name      string          `yaml:"name"`
	Emitters  []EmitterDef    `yaml:"emitters"`
	Particles []ParticleDef   `yaml:"particles"`
	Markers   []MarkerDef     `yaml:"markers"`
	Deferred  []DeferredEvent `yaml:"deferred"`
}

type EmitterDef struct {
	X      float64       `yaml:"x"`
	Y      float64       `yaml:"y"`
	Every  uint64        `yaml:"every"` // frames between bursts
	Burst  int           `yaml:"burst"`
	Speed  float64       `yaml:"speed"` // units per second
	Life   time.Duration `yaml:"life"`
	Splits int           `yaml:"splits"`
}

type ParticleDef struct {
	X      float64       `yaml:"x"`
	Y      float64       `yaml:"y"`
	VX     float64       `yaml:"vx"`
	VY     float64       `yaml:"vy"`
	Life   time.Duration `yaml:"life"`
	Splits int           `yaml:"splits"`
}

type MarkerDef struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Label string  `yaml:"label"`
}

// DeferredEvent raises Event with Param Delay frames after the scenario
// is spawned.
type DeferredEvent struct {
	Event string `yaml:"event"`
	Param int    `yaml:"param"`
	Delay int    `yaml:"delay"`
}

// LoadScenario reads a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return ParseScenario(raw)
}

func ParseScenario(raw []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	for i, e := range s.Emitters {
		if e.Burst < 0 {
			return fmt.Errorf("emitter %d: burst must not be negative", i)
		}
		if e.Life < 0 {
			return fmt.Errorf("emitter %d: life must not be negative", i)
		}
	}
	for i, p := range s.Particles {
		if p.Life < 0 {
			return fmt.Errorf("particle %d: life must not be negative", i)
		}
	}
	for i, d := range s.Deferred {
		if d.Event == "" {
			return fmt.Errorf("deferred %d: event name required", i)
		}
		if d.Delay < 0 {
			return fmt.Errorf("deferred %d: delay must not be negative", i)
		}
	}
	return nil
}

// Total is the number of entities the scenario spawns up front.
func (s *Scenario) Total() int {
	return len(s.Emitters) + len(s.Particles) + len(s.Markers)
}
