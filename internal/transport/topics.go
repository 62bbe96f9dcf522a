package transport

import (
	"strings"

	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
)

// Topics lays the document out on MQTT:
//
//	<prefix>/state          retained JSON snapshot
//	<prefix>/prev_month     retained scalar
//	<prefix>/set/<field>    single-field writes (FieldWrite JSON)
type Topics struct {
	Prefix string
}

func (t Topics) base() string { return strings.TrimSuffix(t.Prefix, "/") }

func (t Topics) State() string     { return t.base() + "/state" }
func (t Topics) PrevMonth() string { return t.base() + "/" + messages.KeyPrevMonth }
func (t Topics) Set(f messages.Field) string {
	return t.base() + "/set/" + string(f)
}
func (t Topics) SetAll() string { return t.base() + "/set/+" }

// FieldOf extracts the field from a set topic.
func (t Topics) FieldOf(topic string) (messages.Field, bool) {
	rest, ok := strings.CutPrefix(topic, t.base()+"/set/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return messages.Field(rest), true
}
