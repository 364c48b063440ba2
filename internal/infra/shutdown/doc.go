// Package shutdown coordinates graceful termination of long-running
// commands such as `rewind replay --follow`.
//
// The first SIGINT or SIGTERM runs the registered hooks in reverse order
// under a timeout; a second signal cancels the force context so blocking
// work is abandoned.
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("follower", func(context.Context) error { f.Stop(); return nil })
//	ctx := h.Start(ctx)
package shutdown
