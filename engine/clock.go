package engine

import (
	"time"

	"github.com/embertrace/engine/model"
)

// Clock returns the current time as a microsecond Timestamp. Engine.New
// uses a real-time clock by default; tests inject a deterministic one.
type Clock func() model.Timestamp

// SystemClock reads the wall clock via time.Now.
func SystemClock() model.Timestamp {
	return model.Timestamp(time.Now().UnixMicro())
}
