// Package api serves a JSON diagnostics API for a running adapter.
//
// The router (github.com/go-chi/chi/v5) exposes assemblies, connections,
// explicit attribute services and the reset service. Handlers never touch
// the stack directly: every request is marshaled onto the stack's
// processing loop with stack.Host.Do.
//
//	GET    /status
//	GET    /assemblies
//	GET    /assemblies/{id}
//	PUT    /assemblies/{id}                       {"data": "<hex>"}
//	GET    /connections
//	POST   /connections                           OpenRequest
//	DELETE /connections
//	DELETE /connections/{id}
//	POST   /connections/{id}/output               {"data": "<hex>", "run": true}
//	GET    /attributes/{class}/{instance}/{attr}
//	PUT    /attributes/{class}/{instance}/{attr}  {"data": "<hex>"}
//	POST   /attributes/{class}/{instance}/{attr}/clear
//	POST   /reset/{type}
package api
