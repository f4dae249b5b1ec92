package gateway

import (
	"bytes"
	_ "embed"
	"net/http"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

//go:embed index.html
var indexHTML []byte

// indexGz is the viewer page, compressed once at start-up.
var indexGz = mustGzip(indexHTML)

func mustGzip(data []byte) []byte {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		panic(err)
	}
	if _, err := zw.Write(data); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Length", strconv.Itoa(len(indexGz)))
	_, _ = w.Write(indexGz)
}
