package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// callbackResult carries the outcome of the single authorization callback.
type callbackResult struct {
	code string
	err  error
}

// callbackListener is a single-use loopback HTTP listener for the
// authorization-code flow. It binds an OS-assigned port, serves exactly one
// valid callback (or one terminal error), and shuts itself down.
type callbackListener struct {
	RedirectURL string

	srv     *http.Server
	ln      net.Listener
	results chan callbackResult
}

// newCallbackListener starts listening on 127.0.0.1 with an ephemeral port.
// state is the CSRF nonce the callback must echo back.
func newCallbackListener(state string) (*callbackListener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bind callback listener: %w", err)
	}
	l := &callbackListener{
		RedirectURL: fmt.Sprintf("http://%s/callback", ln.Addr().String()),
		ln:          ln,
		results:     make(chan callbackResult, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			http.Error(w, "authorization failed: "+errMsg, http.StatusBadRequest)
			l.deliver(callbackResult{err: fmt.Errorf("authorization denied: %s", errMsg)})
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			l.deliver(callbackResult{err: fmt.Errorf("authorization callback state mismatch")})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			l.deliver(callbackResult{err: fmt.Errorf("authorization callback missing code")})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Authorization received. You can close this window.</body></html>"))
		l.deliver(callbackResult{code: code})
	})
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.deliver(callbackResult{err: fmt.Errorf("callback listener: %w", err)})
		}
	}()
	return l, nil
}

func (l *callbackListener) deliver(res callbackResult) {
	select {
	case l.results <- res:
	default: // a result was already delivered; this is not the first callback
	}
}

// Wait blocks until the first valid callback, a terminal error, or ctx
// cancellation, then shuts the listener down.
func (l *callbackListener) Wait(ctx context.Context) (string, error) {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.srv.Shutdown(shutdownCtx)
	}()
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization callback: %w", ctx.Err())
	case res := <-l.results:
		return res.code, res.err
	}
}
