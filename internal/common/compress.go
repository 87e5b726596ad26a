package common

import (
	"compress/gzip"
	"io"
	"strings"
)

func Compress(compressed io.Writer, payload []byte) error {
	w := gzip.NewWriter(compressed)
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Close()
}

func AcceptsGzip(acceptEncoding string) bool {
	for _, enc := range strings.Split(acceptEncoding, ",") {
		enc = strings.TrimSpace(enc)
		if i := strings.IndexByte(enc, ';'); i >= 0 {
			enc = strings.TrimSpace(enc[:i])
		}
		if strings.EqualFold(enc, "gzip") {
			return true
		}
	}
	return false
}
