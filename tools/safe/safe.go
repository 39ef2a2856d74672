package safe

import (
	"PGateway/logger"
)

// Go starts a goroutine that recovers from panics so a single misbehaving
// handler cannot take down the process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
