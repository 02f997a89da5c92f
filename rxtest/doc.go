// Package rxtest provides deterministic collaborators for testing code
// built on [github.com/baxromumarov/rx]: a [Recorder] observer, a
// [ManualScheduler] that runs scheduled actions only when told to, and an
// instrumented hot [Source] that counts subscriptions.
package rxtest
