// Package guard flips the process into test mode as a side effect of being
// imported. Test packages blank-import it so a stray binary entrypoint never
// starts the real runtime during go test.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("REVRADAR_TEST_MODE") == "" {
			_ = os.Setenv("REVRADAR_TEST_MODE", "1")
		}
	})
}
