package installation_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sems_project/internal/services/billing"
	"github.com/LeonardoBeccarini/sems_project/internal/transport"
	"github.com/LeonardoBeccarini/sems_project/pkg/dedup"
	"github.com/LeonardoBeccarini/sems_project/pkg/rabbitmq"
)

// Soglie dell'autopilota, usate in modalità ai.
const (
	FanOnAboveC  = 28.0
	DarkBelowLDR = 30.0
)

// Installation simula il dispositivo: possiede il documento, applica le
// scritture a campo singolo e ripubblica l'intero snapshot.
type Installation struct {
	// pubMu serializza costruzione e pubblicazione: un documento retained
	// non viene mai seguito da uno più vecchio.
	pubMu sync.Mutex

	mu      sync.Mutex
	control entities.ControlState
	act     Actuators
	env     Environment
	reading Reading
	sensed  bool
	month   time.Month

	topics    transport.Topics
	generator *DataGenerator
	publisher rabbitmq.IPublisher
	deduper   *dedup.Deduper
	table     billing.RateTable
	now       func() time.Time
}

func NewInstallation(topics transport.Topics, publisher rabbitmq.IPublisher, gen *DataGenerator, table billing.RateTable) *Installation {
	return &Installation{
		control: entities.ControlState{
			Mode:        entities.ModeAI,
			FanManual:   entities.SwitchOff,
			LightManual: entities.SwitchOff,
		},
		topics:    topics,
		generator: gen,
		publisher: publisher,
		deduper:   dedup.New(2*time.Minute, 10000),
		table:     table,
		now:       time.Now,
	}
}

// Start pubblica una volta la bolletta precedente, poi uno snapshot ad ogni
// intervallo finché ctx non termina.
func (in *Installation) Start(ctx context.Context, interval time.Duration, prevBill entities.Amount) {
	if v, ok := prevBill.Get(); ok {
		in.publishBill(v)
	}
	in.Tick()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			in.Tick()
		}
	}
}

// Tick campiona l'ambiente, applica la logica di controllo e pubblica.
func (in *Installation) Tick() {
	in.pubMu.Lock()
	defer in.pubMu.Unlock()

	env := in.generator.Sense()
	if bill, rolled := in.rollover(); rolled {
		in.publishBill(bill)
	}
	in.mu.Lock()
	in.env = env
	in.sensed = true
	in.decideLocked()
	in.reading = in.generator.Next(in.env, in.act)
	doc := in.documentLocked()
	in.mu.Unlock()
	in.publish(doc)
}

// HandleMessage è l'handler del consumer per <prefix>/set/+.
func (in *Installation) HandleMessage(topic string, msg mqtt.Message) error {
	field, ok := in.topics.FieldOf(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %s", topic)
	}
	var w messages.FieldWrite
	if err := json.Unmarshal(msg.Payload(), &w); err != nil {
		return fmt.Errorf("invalid field write: %w", err)
	}
	if w.Field == "" {
		w.Field = field
	}
	if w.Field != field {
		return fmt.Errorf("field %q does not match topic %s", w.Field, topic)
	}
	if !in.deduper.ShouldProcess(w.ID) {
		slog.Debug("duplicate write ignored", "id", w.ID)
		return nil
	}
	in.pubMu.Lock()
	defer in.pubMu.Unlock()
	doc, err := in.Apply(w)
	if err != nil {
		return err
	}
	in.publish(doc)
	return nil
}

// Apply salva un campo e ritorna il documento risultante.
func (in *Installation) Apply(w messages.FieldWrite) (messages.Snapshot, error) {
	if err := messages.ValidateWrite(w.Field, w.Value); err != nil {
		return nil, err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	switch w.Field {
	case messages.FieldMode:
		in.control.Mode = entities.Mode(w.Value)
	case messages.FieldFanManual:
		in.control.FanManual = entities.SwitchState(w.Value)
	case messages.FieldLightManual:
		in.control.LightManual = entities.SwitchState(w.Value)
	}
	slog.Info("write applied", "id", w.ID, "field", w.Field, "value", w.Value)
	in.decideLocked()
	return in.documentLocked(), nil
}

func (in *Installation) Actuators() Actuators {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.act
}

func (in *Installation) Control() entities.ControlState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.control
}

// Decide ricava lo stato degli attuatori da controllo e ambiente.
func Decide(c entities.ControlState, env Environment) Actuators {
	if c.Mode == entities.ModeManual {
		return Actuators{
			Fan:   c.FanManual == entities.SwitchOn,
			Light: c.LightManual == entities.SwitchOn,
		}
	}
	return Actuators{
		Fan:   env.TemperatureC > FanOnAboveC,
		Light: env.LDR < DarkBelowLDR && env.Motion,
	}
}

func (in *Installation) decideLocked() {
	if !in.sensed {
		// nessun campione ancora: contano solo le impostazioni manuali
		in.act = Decide(in.control, Environment{TemperatureC: math.Inf(-1), LDR: 100})
		return
	}
	in.act = Decide(in.control, in.env)
}

func (in *Installation) documentLocked() messages.Snapshot {
	r := in.reading
	return messages.Snapshot{
		messages.KeyCurrent:        round(r.CurrentAmps, 3),
		messages.KeyBrightness:     round(r.Brightness, 0),
		messages.KeyLDR:            round(in.env.LDR, 0),
		messages.KeyPIR:            levelOf(in.env.Motion),
		messages.KeyRain:           levelOf(in.env.Rain),
		messages.KeyFanSpeed:       round(r.FanSpeedPct, 0),
		messages.KeyTemp:           round(in.env.TemperatureC, 1),
		messages.KeyOverallCurrent: round(r.CumulativeKWh, 3),
		messages.KeyMode:           string(in.control.Mode),
		messages.KeyFanManual:      string(in.control.FanManual),
		messages.KeyLightManual:    string(in.control.LightManual),
	}
}

// rollover chiude il mese di fatturazione al cambio di mese e ritorna
// il costo del mese chiuso.
func (in *Installation) rollover() (float64, bool) {
	m := in.now().Month()
	in.mu.Lock()
	defer in.mu.Unlock()
	prev := in.month
	in.month = m
	if prev == 0 || prev == m {
		return 0, false
	}
	bill := in.table.ComputeCost(in.reading.CumulativeKWh)
	in.generator.ResetMonth()
	in.reading.CumulativeKWh = 0
	slog.Info("billing month closed", "month", prev.String(), "bill_rm", bill)
	return bill, true
}

func (in *Installation) publishBill(v float64) {
	if err := in.publisher.PublishTo(in.topics.PrevMonth(), fmt.Sprintf("%.2f", v)); err != nil {
		slog.Error("publish prev_month", "error", err)
	}
}

func (in *Installation) publish(doc messages.Snapshot) {
	if err := in.publisher.PublishTo(in.topics.State(), doc); err != nil {
		slog.Error("publish snapshot", "error", err)
	}
}

func levelOf(b bool) string {
	if b {
		return string(entities.LevelHigh)
	}
	return string(entities.LevelLow)
}

func round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
