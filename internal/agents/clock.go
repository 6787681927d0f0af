package agents

import "time"

// Clock is an injected time source so branch-name generation is
// deterministic in tests.
type Clock func() time.Time

func RealClock() time.Time { return time.Now() }
