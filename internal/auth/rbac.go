package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
)

// RoleSource loads role-permission configuration from storage.
type RoleSource interface {
	ListRoles(ctx context.Context) ([]domain.RoleConfig, error)
}

// PermissionCache is a process-wide, read-through cache of role grants.
// Grants may be stale by at most the refresh interval; Reload refreshes
// them on demand (e.g. after an admin edits roles).
type PermissionCache struct {
	mu     sync.RWMutex
	grants map[string][]string
	source RoleSource
	logger *zap.Logger
}

// NewPermissionCache constructs an empty cache; call Reload before use.
func NewPermissionCache(source RoleSource, logger *zap.Logger) *PermissionCache {
	return &PermissionCache{
		grants: make(map[string][]string),
		source: source,
		logger: logger,
	}
}

// Reload replaces the cached grants with the current storage contents.
func (c *PermissionCache) Reload(ctx context.Context) error {
	roles, err := c.source.ListRoles(ctx)
	if err != nil {
		return err
	}

	grants := make(map[string][]string, len(roles))
	for _, role := range roles {
		grants[role.RoleKey] = role.Permissions
	}

	c.mu.Lock()
	c.grants = grants
	c.mu.Unlock()

	c.logger.Info("rbac cache reloaded", zap.Int("roles", len(grants)))
	return nil
}

// RunPeriodicRefresh reloads the cache on the given interval until the
// context is cancelled. Refresh failures are logged and retried next tick.
func (c *PermissionCache) RunPeriodicRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Reload(ctx); err != nil {
				c.logger.Warn("rbac cache refresh failed", zap.Error(err))
			}
		}
	}
}

// KnownRole reports whether the role has any configuration loaded.
func (c *PermissionCache) KnownRole(role string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.grants[role]
	return ok
}

// HasPermission checks whether the role is granted the permission.
// "*" grants everything; "subject.*" grants every action on the subject.
func (c *PermissionCache) HasPermission(role, permission string) bool {
	c.mu.RLock()
	grants, ok := c.grants[role]
	c.mu.RUnlock()
	if !ok {
		return false
	}

	for _, grant := range grants {
		if grant == "*" || grant == permission {
			return true
		}
		if strings.HasSuffix(grant, ".*") && strings.HasPrefix(permission, grant[:len(grant)-1]) {
			return true
		}
	}
	return false
}
