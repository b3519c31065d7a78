// Package identity resolves catalog identities from incoming filenames using
// an ordered list of declarative regexp rules.
package identity
