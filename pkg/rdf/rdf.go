// Package rdf provides the triple model and URI helpers shared by the
// graph store and the export pipeline.
package rdf

import "strings"

// Predicates and type IRIs used by the repository export queries.
const (
	HasModel         = "info:fedora/fedora-system:def/model#hasModel"
	DownloadFilename = "info:fedora/fedora-system:def/model#downloadFilename"

	MemberOf  = "http://pcdm.org/models#memberOf"
	HasMember = "http://pcdm.org/models#hasMember"
	HasFile   = "http://pcdm.org/models#hasFile"

	RDFType     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	LDPContains = "http://www.w3.org/ns/ldp#contains"
	IsPartOf    = "http://purl.org/dc/terms/isPartOf"

	ACLAgent    = "http://www.w3.org/ns/auth/acl#agent"
	ACLAccessTo = "http://www.w3.org/ns/auth/acl#accessTo"

	EmbargoReleaseDate      = "http://projecthydra.org/ns/auth/acl#embargoReleaseDate"
	VisibilityDuringEmbargo = "http://projecthydra.org/ns/auth/acl#visibilityDuringEmbargo"
	VisibilityAfterEmbargo  = "http://projecthydra.org/ns/auth/acl#visibilityAfterEmbargo"
	HasEmbargo              = "http://projecthydra.org/ns/auth/acl#hasEmbargo"

	ModelCollection = "Collection"
	ModelPermission = "Hydra::AccessControls::Permission"
	ModelEmbargo    = "Hydra::AccessControls::Embargo"

	TypeWork         = "http://projecthydra.org/works/models#Work"
	TypeFileSet      = "http://projecthydra.org/works/models#FileSet"
	TypeOriginalFile = "http://pcdm.org/use#OriginalFile"
)

// Triple is a single subject/predicate/object statement. Objects are carried
// as their textual value regardless of whether they are IRIs or literals.
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// URIToID reduces a full location reference to its bare trailing path
// component. IDs derived this way are stable and comparable for ordering.
func URIToID(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// URIsToIDs applies URIToID to every element.
func URIsToIDs(uris []string) []string {
	ids := make([]string, 0, len(uris))
	for _, u := range uris {
		ids = append(ids, URIToID(u))
	}
	return ids
}

// GroupFragment extracts the group designation from an ACL agent URI.
// Agent URIs take the form <base>/group#public; the fragment after the final
// '#' names the group.
func GroupFragment(agentURI string) string {
	s := URIToID(agentURI)
	if i := strings.LastIndex(s, "#"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// IsGroupAgent reports whether an ACL agent URI denotes a group rather than
// an individual user.
func IsGroupAgent(agentURI string) bool {
	return strings.Contains(agentURI, "group")
}
