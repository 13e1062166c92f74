package strms

import (
	"io"
)

type closeList []io.Closer

//Close closes every member, in order, returning the first error encountered
func (cl closeList) Close() (err error) {
	for _, closer := range cl {
		if clsrErr := closer.Close(); clsrErr != nil && err == nil {
			err = clsrErr
		}
	}
	return err
}

type readFirstCloseList struct {
	io.Reader
	closeList
}

var _ io.ReadCloser = readFirstCloseList{}

//NewReadFirstCloseList is a wrapper that reads the provided reader but when
// closed will close the provided closers. Useful when you have io.Readers
// wrapping io.ReadClosers (ex. a decompressor over a downloaded report).
func NewReadFirstCloseList(rdr io.Reader, closers ...io.Closer) io.ReadCloser {
	return readFirstCloseList{Reader: rdr, closeList: closers}
}
