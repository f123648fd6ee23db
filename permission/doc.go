// Package permission provides the capability bitmask ([Flags]) and a name
// registry for custom flags.
//
// # Semantics
//
// A required flag set is satisfied only when every required bit is present
// in the subject's flags. Bits 0 and 1 are the built-in [User] and [Admin]
// flags; hosts register further capabilities by name.
//
// # What this package must NOT do
//
//   - Access storage or the network.
//   - Import slateauth or session.
package permission
