package lastfm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

const (
	// AuthCallbackPort is the port used for the local OAuth callback server.
	AuthCallbackPort = 9847

	// authWaitTimeout bounds how long the flow waits for the user to
	// authorize in the browser.
	authWaitTimeout = 5 * time.Minute
)

// ErrAuthTimeout is returned when the user does not complete the
// browser authorization in time.
var ErrAuthTimeout = errors.New("authorization timed out")

// AuthServer handles the OAuth callback flow.
type AuthServer struct {
	server    *http.Server
	listener  net.Listener
	tokenChan chan string
	done      chan struct{}
}

// StartAuthServer starts a local HTTP server to receive the OAuth callback.
// Returns a channel that will receive the token when authorization completes.
func StartAuthServer() (*AuthServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", AuthCallbackPort))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", AuthCallbackPort, err)
	}

	tokenChan := make(chan string, 1)
	done := make(chan struct{})

	mux := http.NewServeMux()
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	as := &AuthServer{
		server:    server,
		listener:  listener,
		tokenChan: tokenChan,
		done:      done,
	}

	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		// Last.fm redirects here after user authorizes with token in query params.
		token := r.URL.Query().Get("token")

		// Send success response to browser
		w.Header().Set("Content-Type", "text/html")
		if token != "" {
			fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Scrubber - Last.fm Authorization</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>Authorization Successful!</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)
		} else {
			fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Scrubber - Last.fm Authorization</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>Authorization Failed</h1>
<p>No token received. Please try again.</p>
</body>
</html>`)
		}

		// Send token to channel (non-blocking)
		select {
		case tokenChan <- token:
		default:
		}
	})

	go func() {
		_ = server.Serve(listener)
		close(done)
	}()

	return as, nil
}

// TokenChan returns the channel that receives the auth token.
func (as *AuthServer) TokenChan() <-chan string {
	return as.tokenChan
}

// Shutdown stops the auth server.
func (as *AuthServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = as.server.Shutdown(ctx)
	<-as.done
}

// waitForToken blocks until the callback delivers a token, the timeout
// elapses, or ctx is cancelled.
func waitForToken(ctx context.Context, tokenChan <-chan string) (string, error) {
	select {
	case token := <-tokenChan:
		if token == "" {
			return "", errors.New("callback received no token")
		}
		return token, nil
	case <-time.After(authWaitTimeout):
		return "", ErrAuthTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Authenticate runs the full desktop auth flow: request a token, open
// the authorization page in the browser, wait for the callback, then
// exchange the token for a session. onAuthURL receives the
// authorization URL so the caller can show it if the browser does not
// open.
func Authenticate(ctx context.Context, client *Client, onAuthURL func(string)) (username, sessionKey string, err error) {
	token, err := client.GetToken()
	if err != nil {
		return "", "", err
	}

	as, err := StartAuthServer()
	if err != nil {
		return "", "", err
	}
	defer as.Shutdown()

	authURL := client.GetAuthURL(token)
	if onAuthURL != nil {
		onAuthURL(authURL)
	}
	_ = OpenBrowser(authURL)

	if _, err := waitForToken(ctx, as.TokenChan()); err != nil {
		return "", "", err
	}

	return client.GetSession(token)
}

// OpenBrowser opens the given URL in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
