package pos

import (
	"fmt"
)

var integrationRegistry = make(map[string]NewFunc)

// Register adds a new integration constructor to the registry.
// This is typically called from the vendor's package init() function.
func Register(name string, newFunc NewFunc) {
	if _, exists := integrationRegistry[name]; exists {
		// Or panic, depending on desired behavior
		return
	}
	integrationRegistry[name] = newFunc
}

// Get returns the constructor for the integration with the given name.
func Get(name string) (NewFunc, error) {
	newFunc, exists := integrationRegistry[name]
	if !exists {
		return nil, fmt.Errorf("no integration registered with name: %s", name)
	}
	return newFunc, nil
}

// Registered lists the registered vendor names.
func Registered() []string {
	names := make([]string, 0, len(integrationRegistry))
	for name := range integrationRegistry {
		names = append(names, name)
	}
	return names
}
