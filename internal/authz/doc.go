// Package authz decides whether a verified identity may act on a resource.
//
// The permission catalogue is a flat list of (role, object, permission)
// rows served by the upstream API. A role's Scope Set is the list of
// objects it holds permission 1 on; a route is allowed when the scope it
// requires is in that set.
package authz
