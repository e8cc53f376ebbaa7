// Package core contains the canonical mfa domain contracts, configuration
// types, and the authentication-factor resolution logic. Lower-level adapters
// and store implementations must depend on this package; core must not depend
// on platform-specific or storage-specific adapters.
package core
