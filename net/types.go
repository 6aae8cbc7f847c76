// Package probenet exposes the toolkit's operations as check-style
// functions over a map config, returning a structured Result. Hosts that
// want typed APIs use the smtp, dnswire, and cache packages directly.
package probenet

// Version of the toolkit, stamped into result metadata.
const Version = "0.3.0"
