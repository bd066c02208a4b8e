package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/models"
)

// Checker evaluates user permissions against the registry.
type Checker struct {
	db *gorm.DB
}

// NewChecker constructs a permission checker backed by the provided database.
func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permission checker: db is required")
	}
	return &Checker{db: db}, nil
}

// Check determines whether the user holds the specified permission together
// with its transitive dependencies. Deleted users hold nothing.
func (c *Checker) Check(ctx context.Context, userID, permissionID string) (bool, error) {
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return false, errors.New("permission checker: permission id is required")
	}
	if _, ok := Get(permissionID); !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownPermission, permissionID)
	}

	user, err := c.loadUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	if user.IsRoot {
		return true, nil
	}

	granted, err := collectUserPermissions(user)
	if err != nil {
		return false, err
	}
	return HasWithDependencies(granted, permissionID)
}

// GetUserPermissions returns the distinct permission IDs granted to the user,
// with implications expanded. Root users hold every registered permission.
func (c *Checker) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	user, err := c.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if user.IsRoot {
		return IDs(), nil
	}

	granted, err := collectUserPermissions(user)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(granted))
	for id := range granted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// HasWithDependencies reports whether the granted set contains permissionID
// and every permission it transitively depends on.
func HasWithDependencies(granted map[string]struct{}, permissionID string) (bool, error) {
	dependencies, err := ResolveDependencies(permissionID)
	if err != nil {
		return false, err
	}
	for _, dep := range dependencies {
		if _, ok := granted[dep]; !ok {
			return false, nil
		}
	}
	_, ok := granted[permissionID]
	return ok, nil
}

func (c *Checker) loadUser(ctx context.Context, userID string) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("permission checker: user id is required")
	}

	var user models.User
	err := c.db.WithContext(ctx).
		Preload("Roles.Permissions").
		First(&user, "id = ? AND deleted_at IS NULL", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission checker: load user: %w", err)
	}
	if !user.IsActive {
		return nil, nil
	}
	return &user, nil
}

func collectUserPermissions(user *models.User) (map[string]struct{}, error) {
	granted := make([]string, 0)
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			granted = append(granted, perm.ID)
		}
	}
	return expandImplied(granted)
}

func expandImplied(ids []string) (map[string]struct{}, error) {
	perms := make(map[string]struct{})

	var visit func(string) error
	visit = func(id string) error {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil
		}
		if _, exists := perms[id]; exists {
			return nil
		}

		def, ok := Get(id)
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownPermission, id)
		}

		perms[id] = struct{}{}
		for _, implied := range def.Implies {
			if err := visit(implied); err != nil {
				return err
			}
		}
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return perms, nil
}
