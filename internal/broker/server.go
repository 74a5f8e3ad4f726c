package broker

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/meshgate/platform/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wires the gin engine, the ExchangeManager, and the three
// cooperating tasks (accept, dispatch, sync) named in spec §2.
type Server struct {
	cfg     Config
	journal *Journal
	manager *ExchangeManager
	engine  *gin.Engine
}

// NewServer opens the journal and builds the HTTP engine. It does not
// start any goroutine; call Run for that.
func NewServer(cfg Config) (*Server, error) {
	journal, err := OpenJournal(cfg.PersistentDir)
	if err != nil {
		return nil, err
	}

	manager := NewExchangeManager(journal, 256)

	engine := gin.New()
	engine.Use(RequestID(), StructuredLogger(), gin.Recovery())
	engine.GET("/", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logging.Broker().Error().Err(err).Msg("websocket upgrade failed")
			return
		}
		ServeConnection(c.Request.Context(), manager, conn)
	})

	return &Server{cfg: cfg, journal: journal, manager: manager, engine: engine}, nil
}

// Run starts the accept, dispatch, and sync tasks and blocks until the
// first one returns, then cancels the others — the Go equivalent of the
// Rust source's tokio::select! over the three top-level tasks (spec §5
// "Cancellation").
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)

	httpServer := &http.Server{
		Addr:    s.cfg.Host + ":" + s.cfg.Port,
		Handler: s.engine,
	}

	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	go s.manager.Run(ctx)
	go s.dispatchLoop(ctx)
	go s.syncLoop(ctx)

	var runErr error
	select {
	case runErr = <-serveErr:
		// the accept task ended first (bind failure or explicit Shutdown);
		// cancel so the dispatch and sync tasks stop too.
		cancel()
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if runErr == http.ErrServerClosed {
		runErr = nil
	}
	return runErr
}

func (s *Server) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.DispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.manager.Tick(ctx)
		}
	}
}

func (s *Server) syncLoop(ctx context.Context) {
	log := logging.Sync()
	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.manager.SyncNow(ctx); err != nil {
				log.Error().Err(err).Msg("journal sync failed")
			}
		}
	}
}
