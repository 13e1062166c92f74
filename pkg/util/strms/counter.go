package strms

import (
	"io"
	"sync/atomic"
)

//Counter is like /dev/null for writing but remembers how many bytes it swallowed
type Counter struct {
	atomicCount int64
}

var _ io.Writer = (*Counter)(nil)

func (c *Counter) Write(buf []byte) (int, error) {
	atomic.AddInt64(&c.atomicCount, int64(len(buf)))
	return len(buf), nil
}

//Count of bytes written so far
func (c *Counter) Count() int64 {
	return atomic.LoadInt64(&c.atomicCount)
}
