// Package tenant derives per-tenant collection names for the knowledge base.
//
// Every tenant's chunks live in exactly one collection. The name is derived
// solely from the tenant id, so any process re-derives the same name without
// a registry. The "Kb" prefix satisfies Weaviate's class-naming rule that
// names start with an uppercase letter; the same names are valid in Qdrant.
package tenant

import (
	"errors"
	"fmt"
)

// ErrInvalidTenantID indicates a tenant id that cannot name a collection.
var ErrInvalidTenantID = errors.New("invalid tenant ID")

// CollectionName returns the deterministic collection name for a tenant,
// e.g. CollectionName(4) == "Kb4". Stable across restarts.
func CollectionName(tenantID int64) (string, error) {
	if tenantID <= 0 {
		return "", fmt.Errorf("%w: %d (must be positive)", ErrInvalidTenantID, tenantID)
	}
	return fmt.Sprintf("Kb%d", tenantID), nil
}
