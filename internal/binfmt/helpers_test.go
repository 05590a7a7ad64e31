package binfmt

import (
	"bytes"
	"io"
)

func readerFor(b []byte) (io.ReaderAt, int64) {
	return bytes.NewReader(b), int64(len(b))
}

func readerAt(b []byte) io.ReaderAt {
	return bytes.NewReader(b)
}
