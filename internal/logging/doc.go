// Package logging provides structured logging for the brain service.
//
// The Logger wraps Zap with context-aware methods. Every call pulls
// correlation fields out of the context so that a log line can be tied back
// to the workspace, requester, request and trace that produced it:
//
//	ctx = logging.WithWorkspace(ctx, "acme")
//	ctx = logging.WithRequester(ctx, "alice")
//	logger.Info(ctx, "memory created", zap.String("memory_id", id))
//
// Output goes to stdout, to the OpenTelemetry log bridge, or both. Levels
// below error are sampled when sampling is enabled; errors never are.
//
// Library packages take a plain *zap.Logger (see Logger.Underlying) and fall
// back to zap.NewNop() when handed nil.
package logging
