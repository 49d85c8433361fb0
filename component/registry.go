package component

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xperimental/vector/errors"
)

// Factory creates a component instance from configuration following the
// service pattern: the factory receives raw JSON configuration and
// dependencies, parses its own config, and returns a properly initialized
// component. All I/O happens in the component's Start() method, never in
// the factory.
type Factory func(rawConfig json.RawMessage, deps Dependencies) (Discoverable, error)

// Registration holds factory and metadata for a component type
type Registration struct {
	Name        string       `json:"name"`        // Factory name (e.g., "detect_exceptions")
	Type        string       `json:"type"`        // Component type (input/processor/output)
	Protocol    string       `json:"protocol"`    // Technical protocol
	Domain      string       `json:"domain"`      // Business domain
	Description string       `json:"description"` // Human-readable description
	Version     string       `json:"version"`     // Component version
	Schema      ConfigSchema `json:"schema"`      // Schema as static metadata
	Factory     Factory      `json:"-"`           // Factory function (not serializable)
}

// RegistrationConfig provides a clean API for component registration.
// It maps 1:1 to Registration struct fields.
type RegistrationConfig struct {
	Name        string       // Component name
	Factory     Factory      // Factory function to create component instances
	Schema      ConfigSchema // Configuration schema for validation and discovery
	Type        string       // Component type: "input", "processor", "output"
	Protocol    string       // Technical protocol
	Domain      string       // Business domain
	Description string       // Human-readable description of the component
	Version     string       // Component version (semver recommended)
}

// ComponentConfig is one component entry from the service configuration:
// which factory to use and the raw component-specific config block.
type ComponentConfig struct {
	Name   string          `json:"name"`   // Factory name
	Type   string          `json:"type"`   // Component type
	Config json.RawMessage `json:"config"` // Component-specific configuration
}

// Registry manages component factories and instances.
// It provides thread-safe registration and lookup of both factories
// (for creation) and instances (for discovery and management).
type Registry struct {
	factories map[string]*Registration
	instances map[string]Discoverable
	mu        sync.RWMutex
}

// NewRegistry creates a new empty component registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
		instances: make(map[string]Discoverable),
	}
}

// RegisterWithConfig registers a component factory from a RegistrationConfig
func (r *Registry) RegisterWithConfig(cfg RegistrationConfig) error {
	return r.RegisterFactory(cfg.Name, &Registration{
		Name:        cfg.Name,
		Type:        cfg.Type,
		Protocol:    cfg.Protocol,
		Domain:      cfg.Domain,
		Description: cfg.Description,
		Version:     cfg.Version,
		Schema:      cfg.Schema,
		Factory:     cfg.Factory,
	})
}

// RegisterFactory registers a component factory with the given name.
// Returns an error if a factory with the same name is already registered.
func (r *Registry) RegisterFactory(name string, registration *Registration) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory name validation")
	}
	if registration == nil || registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory function validation")
	}
	if registration.Type == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "component type validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		msg := fmt.Errorf("factory '%s' is already registered", name)
		return errors.WrapInvalid(msg, "Registry", "RegisterFactory", "duplicate factory check")
	}

	r.factories[name] = registration
	return nil
}

// CreateComponent creates and registers a new component instance.
// The instanceName is the unique identifier for this instance
// (e.g., "detect-exceptions-main"). The config names the factory and
// carries the component-specific configuration block.
func (r *Registry) CreateComponent(
	instanceName string, config ComponentConfig, deps Dependencies,
) (Discoverable, error) {
	if instanceName == "" {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "Registry", "CreateComponent", "instance name validation")
	}
	if config.Name == "" || config.Type == "" {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "Registry", "CreateComponent", "component config validation")
	}

	r.mu.RLock()
	registration, exists := r.factories[config.Name]
	r.mu.RUnlock()

	if !exists {
		msg := fmt.Errorf("unknown component factory '%s'", config.Name)
		return nil, errors.WrapInvalid(msg, "Registry", "CreateComponent", "factory lookup")
	}

	if registration.Type != config.Type {
		msg := fmt.Errorf("component '%s' is type '%s', not '%s'",
			config.Name, registration.Type, config.Type)
		return nil, errors.WrapInvalid(msg, "Registry", "CreateComponent", "type validation")
	}

	comp, err := registration.Factory(config.Config, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "factory execution")
	}

	if err := r.RegisterInstance(instanceName, comp); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "instance registration")
	}

	return comp, nil
}

// RegisterInstance registers a component instance with the given name.
// Returns an error if an instance with the same name is already registered.
func (r *Registry) RegisterInstance(name string, comp Discoverable) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterInstance", "instance name validation")
	}
	if comp == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterInstance", "component validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[name]; exists {
		msg := fmt.Errorf("instance '%s' is already registered", name)
		return errors.WrapInvalid(msg, "Registry", "RegisterInstance", "duplicate instance check")
	}

	r.instances[name] = comp
	return nil
}

// GetInstance returns a registered component instance by name
func (r *Registry) GetInstance(name string) (Discoverable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	comp, ok := r.instances[name]
	return comp, ok
}

// RemoveInstance removes a component instance from the registry
func (r *Registry) RemoveInstance(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[name]; !exists {
		return false
	}
	delete(r.instances, name)
	return true
}

// ListInstances returns the names of all registered instances in sorted order
func (r *Registry) ListInstances() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListFactories returns the registered factory metadata in sorted name order
func (r *Registry) ListFactories() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]*Registration, 0, len(names))
	for _, name := range names {
		result = append(result, r.factories[name])
	}
	return result
}
