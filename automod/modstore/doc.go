// Implementations of moderation.Store and moderation.HistoryStore: in-process memory, SQL via gorm (sqlite or postgres), and redis.
package modstore
