// Package bravery computes global protection defaults and the effective
// settings for a page view from those defaults, the per-site overrides, and the
// shields switch.
package bravery
