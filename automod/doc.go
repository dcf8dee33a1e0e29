// Link threat analysis and moderation for community chat.
//
// This package tree (`github.com/linkguard/linkguard/automod`) analyzes links posted in chat messages, and escalates moderation actions against users who repeatedly post dangerous ones. Each link is rated by a set of independent signal checkers (`automod/signals`: reputation lists, TLS certificates, domain age, shortener resolution, homographs, AI page review, web reputation), the results are combined in to a scored threat tier (`automod/threat`), and the worst link in a message drives a per-user moderation state machine (`automod/moderation`). The `automod/engine` package ties these together with counters, flags, caches, link history and admin notifications.
//
// See `cmd/linkguard` for a daemon built on these packages.
package automod
