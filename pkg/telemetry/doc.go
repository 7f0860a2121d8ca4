// Package telemetry provides observability for the engine bridge.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry), metrics
// (Prometheus) and an event publisher that can forward to redis.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// Loggers carry engine identifiers:
//
//	logger := tel.Logger.NewComponentLogger("attribute").WithPart(geoID, partID)
//	logger.Warnf("attribute %s has storage %s, expected %s", name, native, requested)
//
// # Metrics
//
// Metrics live on a private registry: cooks started and completed by final state, cook
// wait duration, poll iterations, attribute fetches by storage and outcome, engine calls,
// errors by class, asset state transitions and session losses. Every recorder is safe on
// a nil or disabled *Metrics.
//
// # Events
//
// Cook, state, library, policy and session events go through EventPublisher. A RedisSink
// subscriber publishes them on a pub/sub channel and keeps a capped list of recent events.
package telemetry
