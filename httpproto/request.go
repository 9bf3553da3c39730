// Package httpproto implements the HTTP/1.1 request/response side of the
// protocol-detecting connection handler: a request-line/headers/body state
// machine, a small path-alias table, urlencoded form parsing, and a
// zero-copy static-file response built on mmap. Grounded on
// original_source/server/src/http/httprequest.{h,cpp} and
// code/http/httpconn.{h,cpp}; form decoding uses net/url instead of the
// original's hand-rolled percent-decoder since no pack dependency offers a
// form-decoding library and net/url is the direct idiomatic substitute.
package httpproto

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sususu5/im-server/buffer"
)

type parseState int

const (
	stateRequestLine parseState = iota
	stateHeaders
	stateBody
	stateFinished
)

var requestLinePattern = regexp.MustCompile(`^(\S+) (\S+) HTTP/(\S+)$`)

// bareAliases get a ".html" suffix appended, mirroring
// HttpRequest::DEFAULT_HTML in the original.
var bareAliases = map[string]bool{
	"/index": true, "/register": true, "/login": true,
	"/welcome": true, "/video": true, "/picture": true,
}

// formPaths marks the two legacy form endpoints and whether they submit a
// login (true) or a registration (false), mirroring DEFAULT_HTML_TAG.
var formPaths = map[string]bool{"/login.html": true, "/register.html": false}

// request accumulates one HTTP/1.1 request's parse state across however
// many ReadFD calls it takes for the bytes to arrive.
type request struct {
	state     parseState
	malformed bool
	method    string
	path      string
	version   string
	headers   map[string]string
	body      []byte
	form      url.Values
}

func newRequest() *request {
	return &request{headers: make(map[string]string)}
}

// isKeepAlive mirrors HttpRequest::IsKeepAlive.
func (r *request) isKeepAlive() bool {
	return strings.EqualFold(r.headers["Connection"], "keep-alive") && r.version == "1.1"
}

// parse advances the state machine as far as the currently buffered bytes
// allow, consuming only what it fully understood. It returns true once a
// complete request (or an unparsable one, flagged via malformed) has been
// recognized.
func (r *request) parse(buf *buffer.Buffer) bool {
	if buf.Readable() == 0 {
		return false
	}
	for r.state != stateFinished {
		switch r.state {
		case stateRequestLine:
			line, ok := takeLine(buf)
			if !ok {
				return false
			}
			if !r.parseRequestLine(line) {
				r.malformed = true
				r.state = stateFinished
				return true
			}
			r.normalizePath()
			r.state = stateHeaders
		case stateHeaders:
			line, ok := takeLine(buf)
			if !ok {
				return false
			}
			if line == "" {
				if r.wantsBody() {
					r.state = stateBody
				} else {
					r.state = stateFinished
				}
				continue
			}
			r.parseHeaderLine(line)
		case stateBody:
			need := r.contentLength()
			if buf.Readable() < need {
				return false
			}
			r.body = append([]byte(nil), buf.Peek()[:need]...)
			buf.Retrieve(need)
			r.parseForm()
			r.state = stateFinished
		}
	}
	return true
}

func (r *request) parseRequestLine(line string) bool {
	m := requestLinePattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	r.method, r.path, r.version = m[1], m[2], m[3]
	return true
}

func (r *request) parseHeaderLine(line string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return
	}
	key := strings.TrimSpace(line[:i])
	val := strings.TrimPrefix(line[i+1:], " ")
	r.headers[key] = val
}

// normalizePath applies the small alias table: "/" becomes "/index.html",
// and the bare names in bareAliases get a ".html" suffix.
func (r *request) normalizePath() {
	switch {
	case r.path == "/":
		r.path = "/index.html"
	case bareAliases[r.path]:
		r.path += ".html"
	}
}

func (r *request) wantsBody() bool {
	return r.method == "POST" && r.contentLength() > 0
}

func (r *request) contentLength() int {
	n, err := strconv.Atoi(r.headers["Content-Length"])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (r *request) isFormPost() bool {
	return r.method == "POST" && strings.EqualFold(r.headers["Content-Type"], "application/x-www-form-urlencoded")
}

func (r *request) parseForm() {
	if !r.isFormPost() {
		return
	}
	values, err := url.ParseQuery(string(r.body))
	if err != nil {
		return
	}
	r.form = values
}

func (r *request) formValue(key string) string {
	if r.form == nil {
		return ""
	}
	return r.form.Get(key)
}

// takeLine consumes one CRLF-terminated line from buf, or reports false
// ("not enough bytes yet") without consuming anything.
func takeLine(buf *buffer.Buffer) (string, bool) {
	data := buf.Peek()
	idx := bytes.Index(data, []byte("\r\n"))
	if idx < 0 {
		return "", false
	}
	line := string(data[:idx])
	buf.Retrieve(idx + 2)
	return line, true
}
