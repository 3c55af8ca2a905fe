// Package dedupe tracks message ids that have already been applied so that a
// message delivered twice (send echo plus live push, or a replayed push) is
// counted and appended at most once.
package dedupe
