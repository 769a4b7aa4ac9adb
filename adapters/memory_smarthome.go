package adapters

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

// MemorySmartHomeRegistry is an in-memory simulation of a smart-home backend.
// No real device I/O happens; state is mutated in place.
type MemorySmartHomeRegistry struct {
	mu       sync.RWMutex
	entities map[string]*entities.SmartHomeEntity // entity_id -> entity
	classes  map[string]string                    // object class -> entity_id
	order    []string                             // registration order
}

// Ensure MemorySmartHomeRegistry implements the SmartHomeRegistry interface
var _ repositories.SmartHomeRegistry = (*MemorySmartHomeRegistry)(nil)

// NewMemorySmartHomeRegistry creates an empty registry
func NewMemorySmartHomeRegistry() *MemorySmartHomeRegistry {
	return &MemorySmartHomeRegistry{
		entities: make(map[string]*entities.SmartHomeEntity),
		classes:  make(map[string]string),
	}
}

// NewDemoSmartHomeRegistry creates a registry pre-populated with the mock
// home the assistant ships with
func NewDemoSmartHomeRegistry() *MemorySmartHomeRegistry {
	registry := NewMemorySmartHomeRegistry()
	for _, entity := range demoEntities() {
		// demo entities are static and valid
		_ = registry.Register(entity)
	}
	return registry
}

func demoEntities() []*entities.SmartHomeEntity {
	return []*entities.SmartHomeEntity{
		{
			ID:            "light.desk_lamp",
			Name:          "Desk Lamp",
			Type:          entities.EntityTypeLight,
			Aliases:       []string{"lamp", "desk light"},
			ObjectClasses: []string{"laptop", "keyboard", "mouse", "book"},
			State:         entities.EntityStateOff,
		},
		{
			ID:            "media_player.living_room_tv",
			Name:          "Living Room TV",
			Type:          entities.EntityTypeMediaPlayer,
			Aliases:       []string{"tv", "television"},
			ObjectClasses: []string{"tv", "remote"},
			State:         entities.EntityStateOff,
		},
		{
			ID:            "light.living_room",
			Name:          "Living Room Lights",
			Type:          entities.EntityTypeLight,
			Aliases:       []string{"living room light"},
			ObjectClasses: []string{"couch", "potted plant"},
			State:         entities.EntityStateOn,
		},
		{
			ID:            "light.bedroom",
			Name:          "Bedroom Light",
			Type:          entities.EntityTypeLight,
			Aliases:       []string{"bedroom lamp"},
			ObjectClasses: []string{"bed"},
			State:         entities.EntityStateOff,
		},
		{
			ID:            "climate.thermostat",
			Name:          "Thermostat",
			Type:          entities.EntityTypeThermostat,
			Aliases:       []string{"heating", "ac"},
			ObjectClasses: []string{"clock"},
			State:         entities.EntityStateOn,
		},
		{
			ID:            "switch.kitchen_coffee_maker",
			Name:          "Coffee Maker",
			Type:          entities.EntityTypeSwitch,
			Aliases:       []string{"coffee"},
			ObjectClasses: []string{"cup", "microwave"},
			State:         entities.EntityStateOff,
		},
	}
}

// Register adds an entity and indexes its object classes. A class already
// claimed by another entity keeps its first owner.
func (m *MemorySmartHomeRegistry) Register(entity *entities.SmartHomeEntity) error {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}

	if err := entity.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entities[entity.ID]; exists {
		return errors.New("entity with this id already exists")
	}

	entityCopy := *entity
	entityCopy.UpdatedAt = time.Now()
	m.entities[entity.ID] = &entityCopy
	m.order = append(m.order, entity.ID)

	for _, class := range entity.ObjectClasses {
		key := strings.ToLower(class)
		if _, claimed := m.classes[key]; !claimed {
			m.classes[key] = entity.ID
		}
	}

	return nil
}

// List implements SmartHomeRegistry interface
func (m *MemorySmartHomeRegistry) List(ctx context.Context) ([]*entities.SmartHomeEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.SmartHomeEntity, 0, len(m.order))
	for _, id := range m.order {
		entityCopy := *m.entities[id]
		result = append(result, &entityCopy)
	}

	return result, nil
}

// Get implements SmartHomeRegistry interface
func (m *MemorySmartHomeRegistry) Get(ctx context.Context, id string) (*entities.SmartHomeEntity, error) {
	if id == "" {
		return nil, errors.New("entity ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entity, exists := m.entities[id]
	if !exists {
		return nil, repositories.ErrEntityNotFound
	}

	// Return a copy to prevent external modifications
	entityCopy := *entity
	return &entityCopy, nil
}

// LookupByObjectClass implements SmartHomeRegistry interface
func (m *MemorySmartHomeRegistry) LookupByObjectClass(ctx context.Context, class string) (*entities.SmartHomeEntity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.classes[strings.ToLower(strings.TrimSpace(class))]
	if !exists {
		return nil, false
	}

	entityCopy := *m.entities[id]
	return &entityCopy, true
}

// SetState implements SmartHomeRegistry interface
func (m *MemorySmartHomeRegistry) SetState(ctx context.Context, id string, state entities.EntityState) (*entities.SmartHomeEntity, error) {
	if state != entities.EntityStateOn && state != entities.EntityStateOff {
		return nil, errors.New("invalid entity state")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entity, exists := m.entities[id]
	if !exists {
		return nil, repositories.ErrEntityNotFound
	}

	entity.State = state
	entity.UpdatedAt = time.Now()

	entityCopy := *entity
	return &entityCopy, nil
}

// Classes returns the indexed object classes, sorted
func (m *MemorySmartHomeRegistry) Classes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	classes := make([]string, 0, len(m.classes))
	for class := range m.classes {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}
