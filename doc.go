// Package studio implements the schema conformance engine behind an MCP
// (Model Context Protocol) inspection tool, along with the small slice of
// protocol plumbing that engine serves: message capture for a protocol
// inspector, transport taps, and an elicitation coordinator.
//
// The engine has two independent layers. The validator walks a JSON-Schema-like
// definition alongside a value and reports path-qualified diagnostics; the
// conformance profile checks a schema itself against the restricted
// primitives-only dialect required by the protocol's elicitation feature.
// Both are pure functions over immutable inputs and never fail with an error:
// the worst outcome of a degenerate schema is an extra diagnostic entry.
package studio
