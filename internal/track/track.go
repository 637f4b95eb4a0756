// Package track procedurally generates race track descriptors.
//
// Tracks are generated once per session, one per lap, and are immutable after
// creation. Generation is pure over an injected random source so tests can
// reproduce layouts from a fixed seed.
package track

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"
)

// Length is the fixed track length in meters.
const Length = 5000

const (
	minCheckpoints = 8
	maxCheckpoints = 15

	minFeatures = 2
	maxFeatures = 4

	checkpointJitter = 100
	lateralRange     = 20
)

var kinds = []string{"desert", "snow", "forest", "city", "space"}

var features = []string{"jumps", "hairpins", "obstacles", "ramps", "tunnels"}

// Checkpoint marks a gate along the track.
type Checkpoint struct {
	ID            int     `json:"id"`
	Position      float64 `json:"position"`
	LateralOffset int     `json:"lateralOffset"`
}

// Track describes one lap of racing terrain.
type Track struct {
	Kind        string       `json:"type"`
	Features    []string     `json:"features"`
	Length      int          `json:"length"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// Generator produces tracks from a private random stream. Safe for
// concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator seeded from crypto/rand, falling back to
// the wall clock when the entropy source is unavailable.
func NewGenerator() *Generator {
	return NewGeneratorWithSeed(newSeed())
}

// NewGeneratorWithSeed returns a generator with a deterministic stream.
func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces a single track descriptor.
func (g *Generator) Generate() Track {
	g.mu.Lock()
	defer g.mu.Unlock()
	return generate(g.rng)
}

// GenerateSet produces one track per lap.
func (g *Generator) GenerateSet(laps int) []Track {
	g.mu.Lock()
	defer g.mu.Unlock()

	tracks := make([]Track, 0, laps)
	for i := 0; i < laps; i++ {
		tracks = append(tracks, generate(g.rng))
	}
	return tracks
}

func generate(rng *rand.Rand) Track {
	kind := kinds[rng.Intn(len(kinds))]
	picked := sampleFeatures(rng, minFeatures+rng.Intn(maxFeatures-minFeatures+1))

	count := minCheckpoints + rng.Intn(maxCheckpoints-minCheckpoints+1)
	checkpoints := make([]Checkpoint, 0, count)
	for i := 0; i < count; i++ {
		position := float64(i)*Length/float64(count) + float64(rng.Intn(2*checkpointJitter+1)-checkpointJitter)
		if position < 0 {
			position = 0
		}
		if position > Length {
			position = Length
		}
		checkpoints = append(checkpoints, Checkpoint{
			ID:            i,
			Position:      position,
			LateralOffset: rng.Intn(2*lateralRange+1) - lateralRange,
		})
	}

	return Track{
		Kind:        kind,
		Features:    picked,
		Length:      Length,
		Checkpoints: checkpoints,
	}
}

// sampleFeatures picks k distinct features in shuffled order.
func sampleFeatures(rng *rand.Rand, k int) []string {
	pool := make([]string, len(features))
	copy(pool, features)
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:k]
}

// newSeed draws a high-entropy seed from crypto/rand.
func newSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
