// Package monitor is the agent core: the authenticated fetch protocol with
// its single refresh-and-retry, the fixed-interval polling scheduler, and
// the shared state plus event fan-out the UI layer observes.
package monitor
