package admission

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(counts []int, threshold int) ([]State, []Event) {
	var s Snapshot
	states := make([]State, len(counts))
	events := make([]Event, len(counts))
	for i, n := range counts {
		s, events[i] = Step(s, n, threshold)
		states[i] = s.State
	}
	return states, events
}

func TestStep_ReferenceScenario(t *testing.T) {
	counts := []int{0, 0, 2, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	states, events := run(counts, 10)

	assert.Equal(t, SingleFace, states[0])
	assert.Equal(t, SingleFace, states[1])

	// Tick 3 (index 2) enters MultiFace.
	assert.Equal(t, MultiFace, states[2])
	assert.Equal(t, EventWarn, events[2])

	// Ticks 4..12 are the first nine confirmations.
	for i := 3; i < 12; i++ {
		assert.Equal(t, MultiFace, states[i], "tick %d", i+1)
		assert.Equal(t, EventNone, events[i], "tick %d", i+1)
	}

	// Tick 13 is the tenth consecutive single face.
	assert.Equal(t, SingleFace, states[12])
	assert.Equal(t, EventCleared, events[12])
}

func TestStep_SingleGoodFrameDoesNotClear(t *testing.T) {
	states, _ := run([]int{2, 1}, 10)
	assert.Equal(t, MultiFace, states[1])
}

func TestStep_ThresholdOfOneClearsOnFirstSingle(t *testing.T) {
	states, events := run([]int{3, 1}, 1)
	assert.Equal(t, SingleFace, states[1])
	assert.Equal(t, EventCleared, events[1])
}

func TestStep_ZeroFacesResetsConfirmation(t *testing.T) {
	counts := []int{2, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1}
	var s Snapshot
	for _, n := range counts {
		s, _ = Step(s, n, 10)
	}
	assert.Equal(t, MultiFace, s.State)
	assert.Equal(t, 5, s.ConsecutiveSingle)
}

func TestStep_CrowdResetsConfirmation(t *testing.T) {
	var s Snapshot
	for _, n := range []int{2, 1, 1, 1, 3} {
		s, _ = Step(s, n, 3)
	}
	assert.Equal(t, MultiFace, s.State)
	assert.Zero(t, s.ConsecutiveSingle)
}

func TestStep_WarnOncePerEpisode(t *testing.T) {
	counts := []int{2, 2, 3, 2, 1, 1, 2, 2}
	_, events := run(counts, 2)

	warns := 0
	for _, e := range events {
		if e == EventWarn {
			warns++
		}
	}
	// Episode one: ticks 1-4, cleared at tick 6. Episode two starts at tick 7.
	assert.Equal(t, 2, warns)
	assert.Equal(t, EventWarn, events[0])
	assert.Equal(t, EventCleared, events[5])
	assert.Equal(t, EventWarn, events[6])
	assert.Equal(t, EventNone, events[7])
}

func TestStep_UnknownToSingle(t *testing.T) {
	s, ev := Step(Snapshot{}, 0, 10)
	assert.Equal(t, SingleFace, s.State)
	assert.Equal(t, EventNone, ev)

	s, _ = Step(Snapshot{}, 1, 10)
	assert.Equal(t, SingleFace, s.State)
}

func TestStep_InvalidThresholdTreatedAsOne(t *testing.T) {
	states, _ := run([]int{2, 1}, 0)
	assert.Equal(t, SingleFace, states[1])
}

// TestStep_Property checks the reducer against a direct restatement of
// the rule over random sequences: MultiFace right after any tick > 1,
// and it holds until exactly threshold consecutive ticks of one face.
func TestStep_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 500; trial++ {
		threshold := 1 + rng.Intn(12)
		counts := make([]int, 10+rng.Intn(80))
		for i := range counts {
			// Bias toward single faces so episodes actually clear.
			switch r := rng.Intn(10); {
			case r < 6:
				counts[i] = 1
			case r < 8:
				counts[i] = 0
			default:
				counts[i] = 2 + rng.Intn(3)
			}
		}

		states, _ := run(counts, threshold)

		multi := false
		streak := 0
		for i, n := range counts {
			switch {
			case n > 1:
				multi = true
				streak = 0
			case multi && n == 1:
				streak++
				if streak == threshold {
					multi = false
					streak = 0
				}
			case multi:
				streak = 0
			}

			if n > 1 {
				require.Equal(t, MultiFace, states[i], "trial %d tick %d", trial, i)
			}
			if multi {
				require.Equal(t, MultiFace, states[i], "trial %d tick %d", trial, i)
			} else {
				require.Equal(t, SingleFace, states[i], "trial %d tick %d", trial, i)
			}
		}
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "single_face", SingleFace.String())
	assert.Equal(t, "multi_face", MultiFace.String())

	text, err := MultiFace.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "multi_face", string(text))
}

func TestConfig(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, StrictConfig().Validate())
	assert.NoError(t, RelaxedConfig().Validate())
	assert.Equal(t, 10, DefaultConfig().Threshold)

	assert.Error(t, Config{Threshold: 0, Interval: 1}.Validate())
	assert.Error(t, Config{Threshold: 1}.Validate())
}
