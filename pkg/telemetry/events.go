package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a lifecycle event of the engine bridge.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Asset     string                 `json:"asset,omitempty"`
	NodeID    *int32                 `json:"node_id,omitempty"`
	Message   string                 `json:"message"`
	Level     string                 `json:"level"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeCookStarted       = "cook.started"
	EventTypeCookCompleted     = "cook.completed"
	EventTypeCookFailed        = "cook.failed"
	EventTypeAssetStateChanged = "asset.state_changed"
	EventTypeLibraryLoaded     = "library.loaded"
	EventTypeSessionLost       = "session.lost"
	EventTypePolicyViolation   = "policy.violation"
	EventTypeSettingsReloaded  = "settings.reloaded"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles an event.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher delivers events to subscribers, optionally through a buffered goroutine.
// A nil or disabled publisher drops everything.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishCookStarted publishes a cook started event. kind is cook or create.
func (ep *EventPublisher) PublishCookStarted(asset string, nodeID int32, kind string) error {
	return ep.Publish(Event{
		Type:    EventTypeCookStarted,
		Source:  "asset",
		Asset:   asset,
		NodeID:  &nodeID,
		Message: fmt.Sprintf("%s started for %s", kind, asset),
		Level:   EventLevelInfo,
		Data:    map[string]interface{}{"kind": kind},
	})
}

// PublishCookCompleted publishes a cook completed event with the final cook state.
func (ep *EventPublisher) PublishCookCompleted(asset string, nodeID int32, state string, duration time.Duration) error {
	level := EventLevelInfo
	if state != "ready" {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:    EventTypeCookCompleted,
		Source:  "asset",
		Asset:   asset,
		NodeID:  &nodeID,
		Message: fmt.Sprintf("cook of %s finished: %s", asset, state),
		Level:   level,
		Data: map[string]interface{}{
			"state":    state,
			"duration": duration.Seconds(),
		},
	})
}

// PublishCookFailed publishes a cook failure event.
func (ep *EventPublisher) PublishCookFailed(asset string, nodeID int32, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeCookFailed,
		Source:  "asset",
		Asset:   asset,
		NodeID:  &nodeID,
		Message: fmt.Sprintf("cook of %s failed: %s", asset, reason),
		Level:   EventLevelError,
		Data:    map[string]interface{}{"reason": reason},
	})
}

// PublishStateChanged publishes an asset state transition.
func (ep *EventPublisher) PublishStateChanged(asset, from, to, result string) error {
	return ep.Publish(Event{
		Type:    EventTypeAssetStateChanged,
		Source:  "asset",
		Asset:   asset,
		Message: fmt.Sprintf("%s: %s -> %s", asset, from, to),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"from":   from,
			"to":     to,
			"result": result,
		},
	})
}

// PublishLibraryLoaded publishes an asset library load.
func (ep *EventPublisher) PublishLibraryLoaded(path string, assets []string) error {
	return ep.Publish(Event{
		Type:    EventTypeLibraryLoaded,
		Source:  "asset",
		Message: fmt.Sprintf("loaded asset library %s (%d assets)", path, len(assets)),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path":   path,
			"assets": assets,
		},
	})
}

// PublishSessionLost publishes a session-lost notification.
func (ep *EventPublisher) PublishSessionLost(reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeSessionLost,
		Source:  "session",
		Message: "engine session lost: " + reason,
		Level:   EventLevelError,
	})
}

// PublishPolicyViolation publishes an asset admission violation.
func (ep *EventPublisher) PublishPolicyViolation(library, policyName, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "policy",
		Message: fmt.Sprintf("policy %s rejected %s: %s", policyName, library, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"library": library,
			"policy":  policyName,
			"reason":  reason,
		},
	})
}

// PublishSettingsReloaded publishes the outcome of a settings file reload. err is nil
// when the new settings were applied.
func (ep *EventPublisher) PublishSettingsReloaded(path string, err error) error {
	event := Event{
		Type:    EventTypeSettingsReloaded,
		Source:  "config",
		Message: "settings reloaded from " + path,
		Level:   EventLevelInfo,
		Data:    map[string]interface{}{"path": path},
	}
	if err != nil {
		event.Message = fmt.Sprintf("settings reload from %s rejected: %v", path, err)
		event.Level = EventLevelWarning
	}
	return ep.Publish(event)
}

// Subscribe adds a new event subscriber. filter may be nil.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.subscribers = append(ep.subscribers, subscriberEntry{subscriber: subscriber, filter: filter})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.filters = append(ep.filters, filter)
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent calls subscribers in registration order on the calling goroutine.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown drains buffered events and stops the publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel allows events of minLevel or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	floor := levels[minLevel]
	return func(event Event) bool {
		return levels[event.Level] >= floor
	}
}

// FilterByType allows only the given event types.
func FilterByType(types ...string) EventFilter {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(event Event) bool {
		return set[event.Type]
	}
}

// FilterByAsset allows only events for one asset.
func FilterByAsset(asset string) EventFilter {
	return func(event Event) bool {
		return event.Asset == asset
	}
}
