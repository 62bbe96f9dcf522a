package installation_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// ====== Tunables ======
const (
	baseAmps  = 0.05 // controller + sensori
	fanAmps   = 0.25 // ventola al 100%
	lightAmps = 0.12

	tempMean  = 27.0 // °C, media giornaliera
	tempSwing = 4.0  // °C, metà dell'escursione giornaliera
)

// Environment è un campione di ciò che vedono i sensori.
type Environment struct {
	TemperatureC float64
	LDR          float64 // 0 buio .. 100 pieno sole
	Motion       bool
	Rain         bool
}

// Actuators sono gli attuatori pilotati dall'impianto.
type Actuators struct {
	Fan   bool
	Light bool
}

// Reading è un campione generato, lato elettrico compreso.
type Reading struct {
	Env           Environment
	FanSpeedPct   float64
	Brightness    float64
	CurrentAmps   float64
	CumulativeKWh float64
}

// DataGenerator mantiene l'ambiente simulato e il contatore di energia.
// L'energia è moltiplicata per scale: un banco a 5 V accumula consumi da
// abitazione e raggiunge anche le fasce alte della tariffa.
type DataGenerator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	last    time.Time
	kwh     float64
	volts   float64
	scale   float64
	motion  bool
	raining bool
	now     func() time.Time
}

func NewDataGenerator(seed int64, volts, scale, startKWh float64) *DataGenerator {
	if volts <= 0 {
		volts = 5
	}
	if scale <= 0 {
		scale = 1
	}
	return &DataGenerator{
		rnd:   rand.New(rand.NewSource(seed)),
		volts: volts,
		scale: scale,
		kwh:   math.Max(0, startKWh),
		now:   time.Now,
	}
}

// Sense campiona l'ambiente all'ora corrente.
func (g *DataGenerator) Sense() Environment {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	day := dayFraction(now)

	// più caldo a metà pomeriggio, più luce a mezzogiorno
	temp := tempMean + tempSwing*math.Sin(2*math.Pi*(day-0.375)) + g.rnd.NormFloat64()*0.3
	sun := math.Max(0, math.Sin(math.Pi*(day-0.25)/0.5))
	if day < 0.25 || day > 0.75 {
		sun = 0
	}
	ldr := clamp(sun*100+g.rnd.NormFloat64()*2, 0, 100)

	// movimento e pioggia persistono, non cambiano ad ogni tick
	if g.rnd.Float64() < 0.2 {
		g.motion = !g.motion
	}
	if g.rnd.Float64() < 0.02 {
		g.raining = !g.raining
	}
	if g.raining {
		ldr *= 0.6
	}
	return Environment{TemperatureC: temp, LDR: ldr, Motion: g.motion, Rain: g.raining}
}

// Next integra il consumo dalla chiamata precedente con gli attuatori
// nello stato attuale.
func (g *DataGenerator) Next(env Environment, act Actuators) Reading {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()

	r := Reading{Env: env}
	amps := baseAmps
	if act.Fan {
		r.FanSpeedPct = clamp((env.TemperatureC-20)*10, 40, 100)
		amps += fanAmps * r.FanSpeedPct / 100
	}
	if act.Light {
		r.Brightness = clamp(100-env.LDR, 20, 100)
		amps += lightAmps * r.Brightness / 100
	}
	r.CurrentAmps = amps

	if !g.last.IsZero() {
		hours := now.Sub(g.last).Hours()
		if hours > 0 {
			g.kwh += amps * g.volts * hours / 1000 * g.scale
		}
	}
	g.last = now
	r.CumulativeKWh = g.kwh
	return r
}

// ResetMonth apre un nuovo mese di fatturazione.
func (g *DataGenerator) ResetMonth() {
	g.mu.Lock()
	g.kwh = 0
	g.mu.Unlock()
}

func dayFraction(t time.Time) float64 {
	h, m, s := t.Clock()
	return (float64(h) + float64(m)/60 + float64(s)/3600) / 24
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, x))
}
