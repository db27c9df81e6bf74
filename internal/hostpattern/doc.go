// Package hostpattern generates the host patterns that may carry site settings
// for a location. Patterns are plain strings of the form
//
//	scheme://host          exact host and port
//	scheme://hostname:*    any port
//	scheme://*             any host for the scheme
//	https?://host          http or https
//	scheme://*.host[:*]    the host and all of its subdomains
//	*                      every location
//
// Candidates lists them most specific first; the sitesettings resolver folds
// stored records in that order.
package hostpattern
