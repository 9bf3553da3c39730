package httpproto

import (
	"context"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/sususu5/im-server/session"
)

// AuthBackend is the slice of auth.Service the legacy HTML form flow
// needs: UserVerify's login/register branches, collapsed to a bool since
// the form flow only ever shows a "welcome" or "error" page.
type AuthBackend interface {
	Login(ctx context.Context, username, password string) bool
	Register(ctx context.Context, username, password string) bool
}

// MimeLookup resolves a file extension to a Content-Type value. The full
// MIME table is an external collaborator (spec.md §1); Processor falls
// back to a small built-in table when none is supplied.
type MimeLookup func(path string) string

// Processor is the shared, connection-independent configuration for the
// HTTP handler: the static-file root and the legacy form-login backend.
// One Processor serves every HTTP-locked session; per-connection parse
// state lives in session.HTTPState.Opaque.
type Processor struct {
	Root string
	Auth AuthBackend
	Mime MimeLookup
}

// NewProcessor constructs a Processor serving files under root.
func NewProcessor(root string, auth AuthBackend) *Processor {
	return &Processor{Root: root, Auth: auth, Mime: defaultMimeLookup}
}

type connState struct {
	req  *request
	file *fileState
}

type fileState struct {
	data []byte
	sent int
}

func state(sess *session.Session) *connState {
	if sess.Handler.HTTP == nil {
		sess.Handler.HTTP = &session.HTTPState{Opaque: &connState{req: newRequest()}}
	}
	return sess.Handler.HTTP.Opaque.(*connState)
}

func peekState(sess *session.Session) *connState {
	if sess.Handler.HTTP == nil {
		return nil
	}
	return sess.Handler.HTTP.Opaque.(*connState)
}

// Process parses as much of a request as sess.ReadBuf currently holds. It
// returns false if a full request has not yet arrived (the caller should
// keep reading). On a complete request, it writes the status line,
// headers, and (for a 200 static-file response) mmaps the target file and
// stashes it for the egress path to send via a second iovec -- see
// PendingFile/ConsumeFile.
func (p *Processor) Process(ctx context.Context, sess *session.Session) bool {
	st := state(sess)
	if !st.req.parse(sess.ReadBuf) {
		return false
	}

	status, path, keepAlive := p.resolve(ctx, st.req)
	var fileData []byte
	contentLen := 0
	if status == 200 {
		data, err := mapFile(filepath.Join(p.Root, path))
		switch {
		case err != nil:
			status, fileData = 404, nil
		default:
			fileData = data
			contentLen = len(data)
		}
	}

	headers := buildHeaders(status, contentLen, p.mime(path), keepAlive)
	sess.WriteBuf.Append(headers)
	if len(fileData) > 0 {
		st.file = &fileState{data: fileData}
	}
	sess.KeepAlive = keepAlive

	st.req = newRequest()
	return true
}

func (p *Processor) mime(path string) string {
	if p.Mime != nil {
		return p.Mime(path)
	}
	return defaultMimeLookup(path)
}

// resolve applies the legacy login/register form flow (spec.md §1's
// "static-HTML form flow" collaborator, implemented here only to the
// extent of dispatching to AuthBackend and picking welcome/error.html) and
// returns the status code, the file path to serve, and keep-alive.
func (p *Processor) resolve(ctx context.Context, req *request) (status int, path string, keepAlive bool) {
	if req.malformed {
		return 400, "/error.html", false
	}
	keepAlive = req.isKeepAlive()
	path = req.path

	if isLogin, tagged := formPaths[path]; tagged && req.isFormPost() && p.Auth != nil {
		username, password := req.formValue("username"), req.formValue("password")
		var ok bool
		if username != "" && password != "" {
			if isLogin {
				ok = p.Auth.Login(ctx, username, password)
			} else {
				ok = p.Auth.Register(ctx, username, password)
			}
		}
		if ok {
			path = "/welcome.html"
		} else {
			path = "/error.html"
		}
	}
	return 200, path, keepAlive
}

// PendingFile returns the not-yet-sent tail of the mmap'd static file
// attached to sess's current response, or nil if there is none. The
// server's egress path writes this as a second iovec alongside
// sess.WriteBuf's headers, achieving the zero-copy send spec.md §4.7
// describes.
func PendingFile(sess *session.Session) []byte {
	st := peekState(sess)
	if st == nil || st.file == nil {
		return nil
	}
	return st.file.data[st.file.sent:]
}

// ConsumeFile advances the sent cursor of sess's pending file by n bytes,
// unmapping it once fully drained.
func ConsumeFile(sess *session.Session, n int) {
	st := peekState(sess)
	if st == nil || st.file == nil || n <= 0 {
		return
	}
	st.file.sent += n
	if st.file.sent >= len(st.file.data) {
		if len(st.file.data) > 0 {
			_ = unix.Munmap(st.file.data)
		}
		st.file = nil
	}
}
