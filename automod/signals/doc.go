// Independent signal checkers which each rate a single link on a 0.0 (benign) to 1.0 (malicious) scale.
//
// Checkers are run concurrently by a Collector, each under its own timeout. Failures, timeouts, and panics never escape a checker: they are reported as "unavailable" results, which reduce the evidence available to the threat aggregator.
package signals
