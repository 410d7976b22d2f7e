package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/rentflow/backend/internal/domain/shared"
)

// schemaVersionField is the JSON key BaseDomainEvent writes its version to.
const schemaVersionField = "schema_version"

// PayloadUpgrader rewrites a decoded payload from one schema version to the
// next. It may mutate and return the map it receives.
type PayloadUpgrader func(payload map[string]any) (map[string]any, error)

// EventSerializer encodes domain events as JSON and decodes stored payloads
// back into their registered Go types, upgrading old schema versions first.
type EventSerializer struct {
	mu        sync.RWMutex
	registry  map[string]reflect.Type
	upgraders map[string]map[int]PayloadUpgrader // eventType -> source version -> upgrader
}

// NewEventSerializer creates a new event serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry:  make(map[string]reflect.Type),
		upgraders: make(map[string]map[int]PayloadUpgrader),
	}
}

// Register registers an event type for deserialization.
// eventType must match what EventType() returns on the instance.
func (s *EventSerializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// RegisterUpgrader installs the step that turns fromVersion payloads of
// eventType into fromVersion+1 payloads.
func (s *EventSerializer) RegisterUpgrader(eventType string, fromVersion int, upgrader PayloadUpgrader) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upgraders[eventType] == nil {
		s.upgraders[eventType] = make(map[int]PayloadUpgrader)
	}
	s.upgraders[eventType][fromVersion] = upgrader
}

// Serialize serializes a domain event to JSON bytes
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes data into the type registered for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.registry[eventType]
	steps := s.upgraders[eventType]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	if len(steps) > 0 {
		upgraded, err := upgradePayload(data, steps)
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade %s payload: %w", eventType, err)
		}
		data = upgraded
	}

	eventPtr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, eventPtr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	event, ok := eventPtr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("deserialized object does not implement DomainEvent")
	}
	if event.EventType() != eventType {
		return nil, fmt.Errorf("payload type %q does not match stored type %q", event.EventType(), eventType)
	}
	return event, nil
}

func upgradePayload(data []byte, steps map[int]PayloadUpgrader) ([]byte, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	version := 1
	if v, ok := payload[schemaVersionField].(float64); ok && v > 0 {
		version = int(v)
	}
	upgraded := false
	for {
		step, ok := steps[version]
		if !ok {
			break
		}
		next, err := step(payload)
		if err != nil {
			return nil, fmt.Errorf("v%d: %w", version, err)
		}
		payload = next
		version++
		payload[schemaVersionField] = version
		upgraded = true
	}
	if !upgraded {
		return data, nil
	}
	return json.Marshal(payload)
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns all registered event types in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
