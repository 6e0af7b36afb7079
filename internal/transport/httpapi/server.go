package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	rtsup "remindd/internal/runtime/supervisor"
	logx "remindd/pkg/logx"
)

const DefaultAddr = "127.0.0.1:8080"

type Config struct {
	Addr          string
	Token         string
	AllowInsecure bool
	Pprof         bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server runs the API under its own supervisor so a failed listener is
// retried with backoff instead of taking the daemon down.
type Server struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	engine *gin.Engine
	srv    *http.Server
	ln     net.Listener
	sup    *rtsup.Supervisor
}

func NewServer(cfg Config, h *Handler, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, log: log}
	s.engine = s.router(h)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) router(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(panicRecovery(s.log), requestLogger(s.log))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api/v1", bearerAuth(s.cfg.Token))
	h.RegisterRoutes(api)

	if s.cfg.Pprof {
		dbg := r.Group("/debug/pprof", bearerAuth(s.cfg.Token))
		dbg.GET("/", gin.WrapF(hpprof.Index))
		dbg.GET("/cmdline", gin.WrapF(hpprof.Cmdline))
		dbg.GET("/profile", gin.WrapF(hpprof.Profile))
		dbg.GET("/symbol", gin.WrapF(hpprof.Symbol))
		dbg.GET("/trace", gin.WrapF(hpprof.Trace))
		dbg.GET("/:name", func(c *gin.Context) { hpprof.Handler(c.Param("name")).ServeHTTP(c.Writer, c.Request) })
	}
	return r
}

// Start is idempotent.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	s.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log),
		rtsup.WithCancelOnError(false),
	)
	s.sup.GoRestart("http.serve", s.serveOnce,
		rtsup.WithPublishFirstError(true),
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv, sup := s.srv, s.sup
	s.srv, s.ln, s.sup = nil, nil, nil
	s.mu.Unlock()

	if sup == nil {
		return
	}
	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
	sup.Cancel()
	_ = sup.Wait(ctx)
	s.log.Info("api stopped")
}

// Tasks reports the listener loop; empty while stopped.
func (s *Server) Tasks() []rtsup.TaskState {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	return sup.Tasks()
}

// Addr returns the bound address once listening, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) serveOnce(ctx context.Context) error {
	cur := s.cfg
	addr := strings.TrimSpace(cur.Addr)
	if addr == "" {
		addr = DefaultAddr
	}

	// A public bind needs a token unless explicitly allowed.
	if !cur.AllowInsecure && cur.Token == "" && !isLoopbackAddr(addr) {
		s.log.Error("api refused to start: non-loopback addr requires token or allow_insecure", logx.String("addr", addr))
		return errors.New("api refused to start: insecure bind")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error("api listen failed", logx.String("addr", addr), logx.Err(err))
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}
	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  cur.ReadTimeout,
		WriteTimeout: cur.WriteTimeout,
	}

	s.mu.Lock()
	s.ln, s.srv = ln, srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("api started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", cur.Token != ""), logx.Bool("pprof", cur.Pprof))
	err = srv.Serve(ln)

	if ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("api server exited unexpectedly")
	}
	return err
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
