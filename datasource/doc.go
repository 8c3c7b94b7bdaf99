// Package datasource defines the record producer side of a task: an
// adapter exposing a lazy record sequence, a registry of named
// implementations, and the builtin sources (store queries, local
// files and archives, remote pages).
package datasource
