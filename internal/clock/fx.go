package clock

import "go.uber.org/fx"

// Module provides the wall clock. Services take the Clock interface so
// period math and grace windows run against FixedClock in tests.
var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
