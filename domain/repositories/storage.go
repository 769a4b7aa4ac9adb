package repositories

import (
	"context"
	"errors"

	"github.com/satriahrh/vista/domain/entities"
)

// ErrEntityNotFound is returned for unknown smart-home entity ids
var ErrEntityNotFound = errors.New("entity not found")

// SmartHomeRegistry is the lookup and mutate surface of the home backend.
// The mock registry simulates devices; a real backend can be swapped in
// without touching dispatch.
type SmartHomeRegistry interface {
	List(ctx context.Context) ([]*entities.SmartHomeEntity, error)
	Get(ctx context.Context, id string) (*entities.SmartHomeEntity, error)
	// LookupByObjectClass maps a detected object label to an entity
	LookupByObjectClass(ctx context.Context, class string) (*entities.SmartHomeEntity, bool)
	SetState(ctx context.Context, id string, state entities.EntityState) (*entities.SmartHomeEntity, error)
}
