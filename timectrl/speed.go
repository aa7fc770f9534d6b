package timectrl

import (
	"fmt"
	"strings"
)

// SpeedPreset is one entry of the fixed time-scale table.
type SpeedPreset struct {
	Label   string  // human-readable, e.g. "1 hour"
	Seconds float64 // simulated seconds per real second
}

// Presets is the ordered speed table, slowest first.
var Presets = []SpeedPreset{
	{Label: "1 second", Seconds: 1},
	{Label: "1 minute", Seconds: 60},
	{Label: "10 minutes", Seconds: 10 * 60},
	{Label: "30 minutes", Seconds: 30 * 60},
	{Label: "1 hour", Seconds: 60 * 60},
	{Label: "1 day", Seconds: 24 * 60 * 60},
}

// DefaultPresetIndex selects "1 hour".
const DefaultPresetIndex = 4

// PresetIndex returns the table index for a preset label (case-insensitive).
func PresetIndex(label string) (int, error) {
	want := strings.TrimSpace(label)
	for i, p := range Presets {
		if strings.EqualFold(p.Label, want) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown speed preset %q", label)
}

// SimulationClock holds the user-selected time scale. It is owned by the
// frame loop: input events mutate it at the start of a tick and every body
// update in that tick reads the same value. It is not safe for concurrent use.
type SimulationClock struct {
	index        int
	scaleSeconds float64
}

// NewSimulationClock returns a clock on the default preset.
func NewSimulationClock() *SimulationClock {
	c := &SimulationClock{}
	c.set(DefaultPresetIndex)
	return c
}

// NewSimulationClockAt returns a clock on the named preset.
func NewSimulationClockAt(label string) (*SimulationClock, error) {
	idx, err := PresetIndex(label)
	if err != nil {
		return nil, err
	}
	c := &SimulationClock{}
	c.set(idx)
	return c, nil
}

func (c *SimulationClock) set(idx int) {
	c.index = idx
	c.scaleSeconds = Presets[idx].Seconds
}

// IncreaseSpeed moves to the next faster preset. It reports whether the
// preset changed; at the fastest preset it is a no-op.
func (c *SimulationClock) IncreaseSpeed() bool {
	if c.index >= len(Presets)-1 {
		return false
	}
	c.set(c.index + 1)
	return true
}

// DecreaseSpeed moves to the next slower preset, clamping at the slowest.
func (c *SimulationClock) DecreaseSpeed() bool {
	if c.index <= 0 {
		return false
	}
	c.set(c.index - 1)
	return true
}

// ScaleIndex returns the current position in Presets.
func (c *SimulationClock) ScaleIndex() int { return c.index }

// ScaleSeconds returns the simulated seconds that elapse per real second.
func (c *SimulationClock) ScaleSeconds() float64 { return c.scaleSeconds }

// Describe returns the current preset label, e.g. "1 day".
func (c *SimulationClock) Describe() string { return Presets[c.index].Label }

// StatusLine is the overlay text, e.g. "1 second = 1 hour".
func (c *SimulationClock) StatusLine() string {
	return "1 second = " + c.Describe()
}
