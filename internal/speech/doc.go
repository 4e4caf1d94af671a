// Package speech orchestrates the conversion flows: derive the cache key,
// probe the tiered store, and on a miss run the provider call on the bounded
// executor before writing the result back. The streaming path forwards
// provider chunks to the client while accumulating them for a deferred cache
// write that never delays delivery. The package also owns the error taxonomy
// surfaced to the HTTP layer, the per-user conversation history and the
// active-request registry used by the diagnostics routes.
package speech
