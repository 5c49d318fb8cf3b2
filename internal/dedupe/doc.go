// Package dedupe guards against duplicate deploy submissions.
//
// A Guard holds a key (user and agent name) while a deploy runs and for a
// short window afterwards, so a double-clicked deploy does not fire a second
// deploy and overwrite pair at the deployment service.
package dedupe
