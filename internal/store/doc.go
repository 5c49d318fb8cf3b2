// Package store records the agent runtime sessions the gateway creates.
//
// The runtime owns sessions; the gateway keeps its own registry so that
// sessions can be listed per user and agent without asking the runtime.
//
// # Implementations
//
//   - SQLiteStore: database/sql over modernc.org/sqlite (pure Go, WAL mode)
//   - GormStore: gorm over PostgreSQL
//   - MockStore: in-memory, for tests
//
// Open selects an implementation from config.DatabaseConfig.Driver.
//
// # Usage
//
//	s, err := store.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	err = s.SaveSession(ctx, &store.Session{UserID: "u1", AgentName: "calc", SessionID: id})
//	sessions, err := s.ListSessions(ctx, "u1", "calc")
package store
