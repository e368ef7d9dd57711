// Package index builds the three relationship lookup structures applied to
// resources during assembly: group permissions, embargoes, and work nesting.
// Every index is built exactly once before assembly and is read-only for the
// duration of a run.
package index

import (
	"github.com/digitalcollections/fcrepo-migrate/internal/resource"
	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage"
)

// Default group designations for visibility resolution.
const (
	DefaultPublicGroup     = "public"
	DefaultRegisteredGroup = "registered"
)

// PermissionsIndex maps resource IDs to the ordered list of groups with
// access.
type PermissionsIndex struct {
	groups          map[string][]string
	publicGroup     string
	registeredGroup string
}

// BuildPermissions builds the index from raw permission tuples. The public
// and registered designations are matched against the fragment of each group
// agent URI; empty values fall back to the defaults.
func BuildPermissions(tuples []storage.PermissionTuple, publicGroup, registeredGroup string) *PermissionsIndex {
	if publicGroup == "" {
		publicGroup = DefaultPublicGroup
	}
	if registeredGroup == "" {
		registeredGroup = DefaultRegisteredGroup
	}

	groups := make(map[string][]string)
	for _, t := range tuples {
		groups[t.Resource] = append(groups[t.Resource], t.Group)
	}
	return &PermissionsIndex{
		groups:          groups,
		publicGroup:     publicGroup,
		registeredGroup: registeredGroup,
	}
}

// Apply resolves visibility as the least restrictive level granted by any
// controlling group: public wins over registered, registered over anything
// else. A resource with no permission entry keeps its prior visibility.
func (p *PermissionsIndex) Apply(r *resource.Resource) *resource.Resource {
	groups, ok := p.groups[r.ID]
	if !ok {
		return r
	}

	visibility := resource.VisibilityPrivate
	for _, group := range groups {
		switch rdf.GroupFragment(group) {
		case p.publicGroup:
			r.Visibility = resource.VisibilityOpen
			return r
		case p.registeredGroup:
			visibility = resource.VisibilityRestricted
		}
	}
	r.Visibility = visibility
	return r
}
