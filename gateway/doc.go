// Package gateway is the uniform call interface between agent roles and
// language-model providers.
//
// For every Invoke the gateway estimates the outgoing context size, selects
// a deterministic chain of routes for (role, size bucket), waits on the
// role's minimum-interval gate, and streams the first successful provider's
// tokens back to the caller. Each route is retried once before moving to the
// next provider; when the whole chain fails a role-specific canned reply is
// returned and marked degraded. The completed user/assistant exchange is then
// committed to the role's history in one step. Cancelled calls commit nothing.
package gateway
