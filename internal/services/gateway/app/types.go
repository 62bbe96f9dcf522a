package app

import (
	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/services/control"
)

type modeRequest struct {
	Mode string `json:"mode"`
}

type switchRequest struct {
	State string `json:"state"`
}

// IntentResponse acknowledges a write. The view changes only once the
// installation echoes it back.
type IntentResponse struct {
	control.Intent
	Status string `json:"status"`
}

type ControlResponse struct {
	Known                 bool                  `json:"known"`
	State                 entities.ControlState `json:"state"`
	ManualControlsEnabled bool                  `json:"manual_controls_enabled"`
}

type HealthResponse struct {
	Status         string            `json:"status"`
	StoreAvailable bool              `json:"store_available"`
	LastSeq        uint64            `json:"last_seq"`
	LastViewAgeS   float64           `json:"last_view_age_sec"`
	Checks         map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
