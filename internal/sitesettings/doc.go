// Package sitesettings holds per-site setting overrides keyed by host pattern and
// resolves the effective overrides for a location.
//
// Records are flat maps of primitive values. Readers use the typed accessors
// (Record.Bool, Record.String, Record.Number), which treat a value of the wrong
// kind as absent so that callers fall back to the next source.
package sitesettings
