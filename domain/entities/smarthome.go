package entities

import (
	"errors"
	"time"
)

// EntityType is the kind of mock smart-home device
type EntityType string

const (
	EntityTypeLight       EntityType = "light"
	EntityTypeThermostat  EntityType = "thermostat"
	EntityTypeMediaPlayer EntityType = "media_player"
	EntityTypeSwitch      EntityType = "switch"
)

// EntityState is the on/off state of a mock device
type EntityState string

const (
	EntityStateOn  EntityState = "on"
	EntityStateOff EntityState = "off"
)

// Service is a control operation on a smart-home entity
type Service string

const (
	ServiceTurnOn  Service = "turn_on"
	ServiceTurnOff Service = "turn_off"
)

// TargetState maps a service to the state it produces
func (s Service) TargetState() (EntityState, error) {
	switch s {
	case ServiceTurnOn:
		return EntityStateOn, nil
	case ServiceTurnOff:
		return EntityStateOff, nil
	default:
		return "", errors.New("unsupported service: " + string(s))
	}
}

// SmartHomeEntity is a simulated device in the home registry
type SmartHomeEntity struct {
	ID            string      `json:"entity_id"`
	Name          string      `json:"name"`
	Type          EntityType  `json:"type"`
	Aliases       []string    `json:"aliases,omitempty"`
	ObjectClasses []string    `json:"object_classes,omitempty"`
	State         EntityState `json:"state"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Validate checks the entity can be registered
func (e *SmartHomeEntity) Validate() error {
	if e.ID == "" {
		return errors.New("entity_id is required")
	}
	if e.Name == "" {
		return errors.New("name is required")
	}
	if e.State != EntityStateOn && e.State != EntityStateOff {
		return errors.New("invalid entity state")
	}
	return nil
}
