// Package mockgen produces synthetic telemetry for demos and load checks.
package mockgen

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"telemetry/internal/domain"

	"github.com/brianvoe/gofakeit/v7"
)

const (
	historyWindow = time.Hour
	step          = 10 * time.Second
	spikeWindow   = 10 * time.Minute
	spikeStep     = 30 * time.Second
	spikeService  = "payments"
	spikeMessage  = "payment processor timeout"
)

// Profile describes synthetic traffic shape for one service.
type Profile struct {
	Service     string
	LatencyBase float64
	ErrorRate   float64
}

// DefaultProfiles are the demo services.
var DefaultProfiles = []Profile{
	{Service: "payments", LatencyBase: 180, ErrorRate: 0.06},
	{Service: "checkout", LatencyBase: 120, ErrorRate: 0.03},
	{Service: "users", LatencyBase: 80, ErrorRate: 0.03},
}

// Generator builds one hour of metrics and logs per profile plus a recent payments error spike.
// Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	faker    *gofakeit.Faker
	profiles []Profile
}

// New creates generator.
// Params: random source (nil = randomly seeded) and profiles (empty = DefaultProfiles).
// Returns: generator.
func New(src rand.Source, profiles ...Profile) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if len(profiles) == 0 {
		profiles = DefaultProfiles
	}
	return &Generator{
		rng:      rand.New(src),
		faker:    gofakeit.NewFaker(src, false),
		profiles: append([]Profile(nil), profiles...),
	}
}

// Generate returns synthetic events ending at now.
// Params: reference time.
// Returns: raw events ready for IngestBatch.
func (g *Generator) Generate(now time.Time) []domain.RawEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	end := now.UnixMilli()
	start := now.Add(-historyWindow).UnixMilli()
	stepMS := step.Milliseconds()
	steps := int((end-start)/stepMS) + 1
	events := make([]domain.RawEvent, 0, len(g.profiles)*steps*3+int(spikeWindow/spikeStep))

	for _, profile := range g.profiles {
		for ts := start; ts <= end; ts += stepMS {
			events = append(events,
				metricEvent(profile.Service, "latency", g.latency(profile.LatencyBase), ts),
				metricEvent(profile.Service, "requests", g.requests(), ts+100),
				g.logLine(profile, ts+200),
			)
		}
	}

	spikeStepMS := spikeStep.Milliseconds()
	for ts := now.Add(-spikeWindow).UnixMilli(); ts < end; ts += spikeStepMS {
		if g.rng.Float64() < 0.5 {
			events = append(events, logEvent(spikeService, "error", spikeMessage, ts))
		}
	}
	return events
}

// latency draws base ± 20 with a 2% chance of a spike up to +600, floored at 10.
func (g *Generator) latency(base float64) float64 {
	spike := 0.0
	if g.rng.Float64() < 0.02 {
		spike = g.rng.Float64() * 600
	}
	value := base + (g.rng.Float64()-0.5)*40 + spike
	return math.Round(math.Max(10, value))
}

// requests draws 100 ± 25 floored at 1.
func (g *Generator) requests() float64 {
	return math.Max(1, math.Round(100+(g.rng.Float64()-0.5)*50))
}

func (g *Generator) logLine(profile Profile, ts int64) domain.RawEvent {
	level := "info"
	if g.rng.Float64() < profile.ErrorRate {
		level = "error"
	}
	return logEvent(profile.Service, level, g.faker.HackerPhrase(), ts)
}

func metricEvent(service, name string, value float64, ts int64) domain.RawEvent {
	return domain.RawEvent{
		Type:      domain.EventTypeMetric,
		Service:   service,
		Timestamp: domain.FormatTimestamp(ts),
		Fields:    domain.EventFields{Name: name, Value: value},
	}
}

func logEvent(service, level, message string, ts int64) domain.RawEvent {
	return domain.RawEvent{
		Type:      domain.EventTypeLog,
		Service:   service,
		Timestamp: domain.FormatTimestamp(ts),
		Fields:    domain.EventFields{Level: level, Message: message},
	}
}
