package reportserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"
	"github.com/windnow/dlanalyzer/internal/config"
	"github.com/windnow/dlanalyzer/internal/deadlock"
)

type Analyzer interface {
	Analyze(ctx context.Context, w deadlock.Window) (*deadlock.Report, error)
}

type Server struct {
	router   *mux.Router
	conf     *config.Config
	analyzer Analyzer
	location *time.Location
	log      *logrus.Logger
	http     *http.Server
}

func New(conf *config.Config, analyzer Analyzer, log *logrus.Logger) (*Server, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   mux.NewRouter(),
		conf:     conf,
		analyzer: analyzer,
		location: loc,
		log:      log,
	}
	s.configureRouters()

	s.http = &http.Server{
		Addr:              conf.Server.BindAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start blocks until Stop is called. The service argument is nil when
// running from the console.
func (s *Server) Start(_ service.Service) error {
	s.log.Infof("Сервер отчетов запущен на %s", s.conf.Server.BindAddr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("Остановка сервера отчетов")
	return s.http.Shutdown(ctx)
}
