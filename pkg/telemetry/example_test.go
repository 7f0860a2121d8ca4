package telemetry_test

import (
	"context"
	"os"

	"github.com/cookbridge/cookbridge/pkg/telemetry"
)

func Example_componentLogger() {
	logger := telemetry.NewLoggerWithWriter(telemetry.LoggingConfig{Level: "info", Format: "json"}, os.Stdout)
	ctx := logger.NewComponentLogger("socket").WithContext(context.Background())

	telemetry.FromContext(ctx).WithPart(4, 0).Debug("not printed at info level")
	// Output:
}
