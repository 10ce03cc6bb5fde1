// Package memo memoizes function outcomes per normalized argument key.
//
// A Memoizer binds each call's arguments against a keys.Signature, derives a
// keys.CallKey and serves the cached outcome when one is live. Concurrent
// calls for the same key share a single execution. Outcomes are bounded by
// size (least recently used first) and by age, and may be mirrored to an
// append-only journal so they survive restarts.
//
// # Usage
//
//	m, err := memo.New(func(ctx context.Context, b keys.Binding) (User, error) {
//		id, _ := b.Value("id")
//		return db.LoadUser(ctx, id.(int))
//	}, memo.Config{
//		Name:      "users",
//		Signature: keys.Sig(keys.Required("id")),
//		MaxSize:   1024,
//		MaxAge:    time.Minute,
//		Store:     memo.DefaultStore(),
//	})
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	u, err := m.Call(ctx, keys.Pos(42))
//
// # Errors
//
// Errors returned by the function are cached like values and returned to
// every caller unchanged. Context errors, gate rejections and panics are
// not cached. A call made from inside a computation for the same key fails
// with flight.ErrReentrant instead of waiting on itself.
//
// WithExecutor retries a failing computation or bounds each attempt with a
// timeout before anything is cached; attempt timeouts are not cached.
//
// # Persistence
//
// With Config.Store set, New replays the journal, drops expired and
// over-capacity entries and compacts the file. Every later mutation is
// appended synchronously. A failed append never undoes the in-memory
// change; the computing caller receives the value together with a
// *store.PersistenceError and Checker reports the memoizer as degraded.
//
// # Control
//
// Reset, Evict, Len and Close act on a single memoizer; a Registry resets
// or closes a group of them.
package memo
