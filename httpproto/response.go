package httpproto

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// defaultMimeTypes is a small built-in fallback; the full MIME table is an
// external collaborator per spec.md §1, so this only covers the handful
// of extensions the bundled static assets actually use.
var defaultMimeTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".json": "application/json",
}

// defaultMimeLookup returns the MIME type for path's extension, falling
// back to a generic octet-stream.
func defaultMimeLookup(path string) string {
	if t, ok := defaultMimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}

var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
}

// mapFile opens path read-only and mmaps its full contents (PROT_READ,
// MAP_PRIVATE), returning the mapped slice. The backing fd is closed
// immediately after the mapping is established, matching the original's
// mmap-then-close-fd zero-copy idiom in httpresponse.cpp.
func mapFile(path string) ([]byte, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, err
	}
	if st.Size == 0 {
		return []byte{}, nil
	}
	data, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// buildHeaders assembles the status line and response headers for a
// static-file reply, mirroring HttpResponse::AddStateLine_/AddHeader_.
func buildHeaders(status int, contentLen int, mimeType string, keepAlive bool) []byte {
	text, ok := statusText[status]
	if !ok {
		text = "Bad Request"
		status = 400
	}
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, text)
	if keepAlive {
		b.WriteString("Connection: keep-alive\r\n")
		b.WriteString("Keep-Alive: timeout=120\r\n")
	} else {
		b.WriteString("Connection: close\r\n")
	}
	fmt.Fprintf(&b, "Content-Type: %s\r\n", mimeType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", contentLen)
	return []byte(b.String())
}
