package app

import (
	"os"
	"strings"
	"sync"
)

// testModeEnv disables process side effects (listeners, dials, token
// files) when truthy.
const testModeEnv = "DESK_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return truthy(os.Getenv(testModeEnv))
})

// InTestMode reports whether the process should skip runtime side effects.
func InTestMode() bool {
	return testMode()
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
