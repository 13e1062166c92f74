package strms

import (
	"io"
)

//ReadAtReader is io.ReaderAt + io.Reader
type ReadAtReader interface {
	io.ReaderAt
	io.Reader
	Offset() int64
}

//WriterAtWriter is io.WriterAt + io.Writer
type WriterAtWriter interface {
	io.WriterAt
	io.Writer
	Offset() int64
}

type readAtReader struct {
	cur int64 //we protect underlying reader's position
	io.ReaderAt
}

type writeAtWriter struct {
	cur int64 //we protect underlying writer's position
	io.WriterAt
}

var (
	_ io.Reader = (*readAtReader)(nil)
	_ io.Writer = (*writeAtWriter)(nil)
)

//NewReadAtReader returns a reader that uses an io.ReaderAt's ReadAt in conjunction
// with its own position counter beginning at start. os.File's position lives on the
// kernel side, so sharing a device handle between the benchmark and its side-channel
// traffic is only safe by always using positional I/O as done here.
func NewReadAtReader(rdrAt io.ReaderAt, start int64) ReadAtReader {
	return &readAtReader{
		cur:      start,
		ReaderAt: rdrAt,
	}
}

//NewWriteAtWriter returns a writer that uses an io.WriterAt's WriteAt in conjunction
// with its own position counter beginning at start. See NewReadAtReader.
func NewWriteAtWriter(wtrAt io.WriterAt, start int64) WriterAtWriter {
	return &writeAtWriter{
		cur:      start,
		WriterAt: wtrAt,
	}
}

func (rar *readAtReader) Read(buf []byte) (n int, err error) {
	n, err = rar.ReadAt(buf, rar.cur)
	rar.cur += int64(n)
	return n, err
}

//Offset is the position the next Read will use
func (rar *readAtReader) Offset() int64 { return rar.cur }

func (waw *writeAtWriter) Write(buf []byte) (n int, err error) {
	n, err = waw.WriteAt(buf, waw.cur)
	waw.cur += int64(n)
	return n, err
}

//Offset is the position the next Write will use
func (waw *writeAtWriter) Offset() int64 { return waw.cur }
