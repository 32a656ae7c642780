package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// callbackTimeout bounds how long `oauth login` waits for the user to finish
// authorizing in the browser.
const callbackTimeout = 5 * time.Minute

const callbackPageHTML = `<!DOCTYPE html>
<html>
<head><title>Keyline</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
<h1>You're signed in</h1>
<p>You can close this tab and return to the terminal.</p>
</body>
</html>`

// callbackServer is a single-use loopback HTTP server that receives the
// OAuth redirect. It captures the raw callback URL and hands it to the
// waiting command; validation and the exchange stay in the SDK.
type callbackServer struct {
	listener net.Listener
	server   *http.Server
	urlCh    chan string
	once     sync.Once
}

// startCallbackServer listens on 127.0.0.1. Port 0 picks a free port, which
// only works with providers that allow wildcard loopback redirect URIs;
// otherwise pass the registered port.
func startCallbackServer(port int) (*callbackServer, string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, "", fmt.Errorf("start callback listener: %w", err)
	}

	s := &callbackServer{
		listener: listener,
		urlCh:    make(chan string, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handle)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		// ErrServerClosed is the normal shutdown path.
		_ = s.server.Serve(listener)
	}()

	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", listener.Addr().(*net.TCPAddr).Port)
	return s, redirectURI, nil
}

func (s *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	delivered := false
	s.once.Do(func() {
		delivered = true
		s.urlCh <- r.URL.String()
	})
	if !delivered {
		http.Error(w, "callback already handled", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, callbackPageHTML)
}

// wait blocks until the redirect arrives or ctx expires.
func (s *callbackServer) wait(ctx context.Context) (string, error) {
	select {
	case rawURL := <-s.urlCh:
		return rawURL, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for the browser callback: %w", ctx.Err())
	}
}

func (s *callbackServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}
