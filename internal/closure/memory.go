package closure

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/authz-engine/pep-core/pkg/types"
)

// MemoryRepository is an in-memory Repository for tests and single-process
// deployments where the hierarchy projection is loaded at startup.
type MemoryRepository struct {
	mu         sync.RWMutex
	tenantRows []TenantClosureRow
	groupRows  []GroupClosureRow
	members    []MembershipRow
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// LoadTenantRows replaces the tenant closure projection.
func (m *MemoryRepository) LoadTenantRows(rows []TenantClosureRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenantRows = append([]TenantClosureRow(nil), rows...)
}

// LoadGroupRows replaces the group closure projection.
func (m *MemoryRepository) LoadGroupRows(rows []GroupClosureRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupRows = append([]GroupClosureRow(nil), rows...)
}

// LoadMemberships replaces the group membership projection.
func (m *MemoryRepository) LoadMemberships(rows []MembershipRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append([]MembershipRow(nil), rows...)
}

// TenantDescendants implements Repository.
func (m *MemoryRepository) TenantDescendants(_ context.Context, root uuid.UUID, barrier types.BarrierMode, status []string) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []uuid.UUID
	for _, row := range m.tenantRows {
		if row.Ancestor != root {
			continue
		}
		if barrier == types.BarrierModeAll && row.Barrier != 0 {
			continue
		}
		if len(status) > 0 && !containsString(status, row.DescendantStatus) {
			continue
		}
		out = append(out, row.Descendant)
	}
	return out, nil
}

// TenantAncestors implements Repository.
func (m *MemoryRepository) TenantAncestors(_ context.Context, tenant uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []uuid.UUID
	for _, row := range m.tenantRows {
		if row.Descendant == tenant {
			out = append(out, row.Ancestor)
		}
	}
	return out, nil
}

// GroupDescendants implements Repository.
func (m *MemoryRepository) GroupDescendants(_ context.Context, root uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []uuid.UUID
	for _, row := range m.groupRows {
		if row.Ancestor == root {
			out = append(out, row.Descendant)
		}
	}
	return out, nil
}

// GroupMembers implements Repository.
func (m *MemoryRepository) GroupMembers(_ context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}

	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, row := range m.members {
		if wanted[row.GroupID] && !seen[row.ResourceID] {
			seen[row.ResourceID] = true
			out = append(out, row.ResourceID)
		}
	}
	return out, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
