package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/muurk/homecam/internal/credentials"
	"github.com/muurk/homecam/internal/server"
	"go.uber.org/zap"
)

const (
	// maxFormBody bounds the /connect request body.
	maxFormBody = 128

	// Field limits leave room for the terminator the radio driver expects.
	maxSSIDField     = 31
	maxPasswordField = 63

	// SuccessMessage is the body returned once credentials are stored.
	SuccessMessage = "<h1>Credentials have been set. Now you have to restart module.</h1>"
)

const formPage = `<!DOCTYPE html>
<html>
<head><title>WiFi Setup</title></head>
<body>
<h1>HomeCam WiFi Configuration</h1>
<form method="POST" action="/connect">
SSID: <input type="text" name="ssid" maxlength="31"><br>
Password: <input type="password" name="password" maxlength="63"><br>
<input type="submit" value="Connect">
</form>
</body>
</html>
`

var errNotRunning = errors.New("provisioning server not running")

// Config holds the provisioning server configuration
type Config struct {
	Host string
	Port int
}

// Server serves the credential form while the device is in provisioning mode.
type Server struct {
	store  *credentials.Store
	config Config
	logger *zap.Logger

	mu  sync.Mutex
	srv *server.Server
}

// New creates a provisioning server that saves into store.
func New(store *credentials.Store, config Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, config: config, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("POST /connect", s.handleConnect)
	return server.LogRequests(mux)
}

// Start binds the listener. It is accepting once Start returns.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	srv, err := server.Start(server.Config{
		Name:    "provisioning",
		Host:    s.config.Host,
		Port:    s.config.Port,
		Handler: s.Handler(),
		Logger:  s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to start provisioning server: %w", err)
	}
	s.srv = srv
	return nil
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return errNotRunning
	}
	return srv.Shutdown(ctx)
}

// Addr returns the bound address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return ""
	}
	return s.srv.Addr()
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, formPage)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBody))
	if err != nil || len(body) == 0 {
		http.Error(w, "empty request", http.StatusBadRequest)
		return
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	creds := credentials.Credentials{
		SSID:     truncate(values.Get("ssid"), maxSSIDField),
		Password: truncate(values.Get("password"), maxPasswordField),
	}
	if !creds.Configured() {
		http.Error(w, "ssid is required", http.StatusBadRequest)
		return
	}

	if err := s.store.Save(creds); err != nil {
		s.logger.Error("failed to save credentials", zap.Error(err))
		http.Error(w, "failed to save credentials", http.StatusInternalServerError)
		return
	}

	s.logger.Info("credentials received", zap.String("ssid", creds.SSID))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, SuccessMessage)
}

// truncate cuts s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
