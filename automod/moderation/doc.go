// The per-user strike state machine: warnings, mutes and bans, escalated by Danger-tier links.
//
// Policy.Apply is the pure transition function. Moderator wraps it with persistence, serializing transitions per user.
package moderation
