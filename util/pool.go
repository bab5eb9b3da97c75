package util

import "sync"

// ReadChunkSize is the size of pooled scratch buffers used when
// filling frame buffers from a connection.
const ReadChunkSize = 4 * 1024

// BufPool provides reusable scratch buffers for socket reads so that
// every session does not allocate its own on each read.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadChunkSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
