// Package async provides panic-safe execution for background and scheduled
// work.
//
//	async.SafeGo(ctx, logger, 5*time.Second, "expired session delete", func(ctx context.Context) error {
//		return store.Delete(ctx, id)
//	})
//
//	err := async.Run(ctx, time.Minute, "session cleanup", func(ctx context.Context) error {
//		_, err := sessions.CleanupExpired(ctx)
//		return err
//	})
//
// Run is what the janitor's cron jobs execute through; SafeGo is used for
// fire-and-forget work off the request path.
package async
