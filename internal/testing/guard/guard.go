package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STOCKPILOT_TEST_MODE") == "" {
			_ = os.Setenv("STOCKPILOT_TEST_MODE", "1")
		}
	})
}
