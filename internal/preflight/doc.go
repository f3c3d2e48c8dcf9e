// Package preflight provides readiness checks for the directories and
// external services a batch run depends on. The runner calls RunAll before
// starting a batch so a misconfigured table or full disk fails fast instead
// of after minutes of polling.
package preflight
