package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SEER_TEST_MODE") == "" {
			_ = os.Setenv("SEER_TEST_MODE", "1")
		}
	})
}
