package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/InsulaLabs/funcs/internal/config"
	"github.com/InsulaLabs/funcs/internal/repl"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

// Server hands every SSH session its own REPL and interpreter.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	authorizedKeys map[string]struct{}
	limiters       *ttlcache.Cache[string, *rate.Limiter]

	srv *ssh.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:            cfg,
		logger:         logger.WithGroup("serve"),
		authorizedKeys: make(map[string]struct{}, len(cfg.Serve.AuthorizedKeys)),
	}

	for _, key := range cfg.Serve.AuthorizedKeys {
		parsed, _, _, _, err := gossh.ParseAuthorizedKey([]byte(key))
		if err != nil {
			return nil, errors.Wrapf(config.ErrServeAuthorizedKeyInvalid, "%q", key)
		}
		s.authorizedKeys[marshalKey(parsed)] = struct{}{}
	}

	s.limiters = ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](time.Minute*1),
		ttlcache.WithDisableTouchOnHit[string, *rate.Limiter](),
	)
	s.logger.Info("Initialized session rate limiter", "limit", cfg.Serve.RateLimit.Limit, "burst", cfg.Serve.RateLimit.Burst)

	if err := config.EnsureHostKey(cfg.Serve.HostKeyPath); err != nil {
		return nil, err
	}

	options := []ssh.Option{
		wish.WithAddress(cfg.Serve.Address),
		wish.WithHostKeyPath(cfg.Serve.HostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			return s.authenticate(ctx, key)
		}),
		ssh.AllocatePty(),
		wish.WithMiddleware(
			bubbletea.Middleware(s.newSession),
			s.rateLimitMiddleware(),
			activeterm.Middleware(),
			logging.Middleware(),
		),
	}
	if cfg.Serve.MaxSessionTime > 0 {
		options = append(options, wish.WithMaxTimeout(cfg.Serve.MaxSessionTime))
	}

	srv, err := wish.NewServer(options...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create ssh server")
	}
	s.srv = srv
	return s, nil
}

// Serve listens until ctx is cancelled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	go s.limiters.Start()
	defer s.limiters.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting SSH server", "address", s.cfg.Serve.Address)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			return errors.Wrap(err, "could not start server")
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Stopping SSH server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return errors.Wrap(err, "could not stop server")
	}
	return nil
}

func (s *Server) authenticate(_ ssh.Context, key ssh.PublicKey) bool {
	if len(s.authorizedKeys) == 0 {
		return true
	}
	_, ok := s.authorizedKeys[marshalKey(key)]
	if !ok {
		s.logger.Debug("SSH authentication failed: key not authorized", "type", key.Type())
	}
	return ok
}

func marshalKey(key gossh.PublicKey) string {
	return strings.TrimSpace(string(gossh.MarshalAuthorizedKey(key)))
}

func (s *Server) getRateLimiter(ip string) *rate.Limiter {
	limiterItem := s.limiters.Get(ip)
	if limiterItem == nil {
		rlConfig := s.cfg.Serve.RateLimit
		limiter := rate.NewLimiter(rate.Limit(rlConfig.Limit), rlConfig.Burst)
		limiterItem = s.limiters.Set(ip, limiter, time.Minute*1)
	}
	return limiterItem.Value()
}

// allow reports whether remote may open another session now.
func (s *Server) allow(remote net.Addr) bool {
	ip := remoteIP(remote)
	res := s.getRateLimiter(ip).Reserve()
	if !res.OK() {
		return false
	}
	if res.Delay() > 0 {
		res.Cancel()
		s.logger.Warn("Session rate limit exceeded", "ip", ip)
		return false
	}
	return true
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func (s *Server) rateLimitMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			if !s.allow(sess.RemoteAddr()) {
				wish.Fatalln(sess, "too many sessions, try again later")
				return
			}
			next(sess)
		}
	}
}

func (s *Server) newSession(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
	user := sess.User()
	s.logger.Info("New session", "user", user, "remote_addr", sess.RemoteAddr())

	model := repl.New(sess.Context(), repl.SessionConfig{
		Logger:      s.logger.WithGroup("ssh"),
		UserID:      user,
		Prompt:      fmt.Sprintf("%s %s", user, s.cfg.Repl.Prompt),
		HistorySize: s.cfg.Repl.HistorySize,
		MaxDepth:    s.cfg.Interpreter.MaxDepth,
		Trace:       s.cfg.Interpreter.Trace,
	})

	return model, []tea.ProgramOption{
		tea.WithAltScreen(),
	}
}
