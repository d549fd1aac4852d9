// Package gateway implements the route table of the readr BFF and the
// handlers it dispatches to.
//
// # Routing
//
// A Table is an ordered, immutable list of Rules built once at startup.
// The first rule whose prefix and method set accept a request serves it;
// anything else goes to the passthrough proxy. Each rule's chain is
//
//	[verifier] [scope filter] before... handler after...
//
// # Handlers
//
//   - Proxy: forwards method, path, query and body to the upstream API
//   - ProfileAggregator: joins the member record and the permission
//     catalogue into the caller's profile
//   - ModelCatalogue: serves the models available to the calling host
//   - TraceSink: records client trace events
//
// Handlers report failures with c.Error; the error boundary middleware
// renders them.
package gateway
