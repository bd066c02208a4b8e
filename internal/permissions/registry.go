package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Permission describes a capability registered by platform modules.
type Permission struct {
	ID          string
	Module      string
	DependsOn   []string
	Implies     []string
	Description string
}

type registry struct {
	mu          sync.RWMutex
	permissions map[string]*Permission
}

var globalRegistry = &registry{
	permissions: make(map[string]*Permission),
}

var (
	errNilPermission = errors.New("permission: nil definition")
	errEmptyID       = errors.New("permission: id is required")
	errDuplicateID   = errors.New("permission: already registered")
	errSelfReference = errors.New("permission: cannot reference itself")

	// ErrUnknownPermission indicates a lookup failed because the permission
	// has not been registered.
	ErrUnknownPermission = errors.New("permission: unknown permission")
	// ErrCircularDependency signals that a dependency graph contains a cycle.
	ErrCircularDependency = errors.New("permission: circular dependency detected")
)

// Register adds a permission definition to the global registry.
func Register(perm *Permission) error {
	if perm == nil {
		return errNilPermission
	}

	id := strings.TrimSpace(perm.ID)
	if id == "" {
		return errEmptyID
	}

	def := clonePermission(perm)
	def.ID = id
	def.Module = strings.TrimSpace(def.Module)

	depends, err := normaliseIDs(def.DependsOn, id)
	if err != nil {
		return err
	}
	implies, err := normaliseIDs(def.Implies, id)
	if err != nil {
		return err
	}
	def.DependsOn = depends
	def.Implies = implies

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.permissions[id]; exists {
		return fmt.Errorf("%w: %s", errDuplicateID, id)
	}

	globalRegistry.permissions[id] = def
	return nil
}

// MustRegister registers the permission and panics on failure. Intended for
// module init blocks where a bad definition is a programming error.
func MustRegister(perm *Permission) {
	if err := Register(perm); err != nil {
		panic(err)
	}
}

// Get returns a copy of the permission definition when registered.
func Get(id string) (*Permission, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	perm, ok := globalRegistry.permissions[id]
	if !ok {
		return nil, false
	}
	return clonePermission(perm), true
}

// GetAll returns a copy of all registered permissions keyed by ID.
func GetAll() map[string]*Permission {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make(map[string]*Permission, len(globalRegistry.permissions))
	for id, perm := range globalRegistry.permissions {
		out[id] = clonePermission(perm)
	}
	return out
}

// IDs returns the sorted identifiers of every registered permission.
func IDs() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	ids := make([]string, 0, len(globalRegistry.permissions))
	for id := range globalRegistry.permissions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateDependencies ensures that all dependency and implication edges
// reference known permissions.
func ValidateDependencies() error {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	for _, perm := range globalRegistry.permissions {
		for _, dep := range perm.DependsOn {
			if _, ok := globalRegistry.permissions[dep]; !ok {
				return fmt.Errorf("permission: %s depends on unknown permission %s", perm.ID, dep)
			}
		}
		for _, implied := range perm.Implies {
			if _, ok := globalRegistry.permissions[implied]; !ok {
				return fmt.Errorf("permission: %s implies unknown permission %s", perm.ID, implied)
			}
		}
	}
	return nil
}

// ResolveDependencies returns the transitive dependency chain for the
// specified permission, excluding the permission itself.
func ResolveDependencies(permissionID string) ([]string, error) {
	perms := GetAll()

	root, ok := perms[permissionID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPermission, permissionID)
	}

	visited := make(map[string]bool, len(perms))
	onPath := make(map[string]bool, len(perms))
	var resolved []string

	var walk func(string) error
	walk = func(current string) error {
		perm, ok := perms[current]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownPermission, current)
		}
		if onPath[current] {
			return fmt.Errorf("%w at %s", ErrCircularDependency, current)
		}
		if visited[current] {
			return nil
		}

		onPath[current] = true
		for _, dep := range perm.DependsOn {
			if err := walk(dep); err != nil {
				return err
			}
		}
		onPath[current] = false
		visited[current] = true

		if current != permissionID {
			resolved = append(resolved, current)
		}
		return nil
	}

	for _, dep := range root.DependsOn {
		if err := walk(dep); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func clonePermission(perm *Permission) *Permission {
	cp := *perm
	if len(perm.DependsOn) > 0 {
		cp.DependsOn = append([]string(nil), perm.DependsOn...)
	}
	if len(perm.Implies) > 0 {
		cp.Implies = append([]string(nil), perm.Implies...)
	}
	return &cp
}

func normaliseIDs(values []string, self string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if value == self {
			return nil, fmt.Errorf("%w: %s", errSelfReference, self)
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result, nil
}

// reset clears registry entries. Intended for testing only.
func reset() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.permissions = make(map[string]*Permission)
}
