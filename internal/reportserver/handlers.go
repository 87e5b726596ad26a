package reportserver

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/windnow/dlanalyzer/internal/common"
	"github.com/windnow/dlanalyzer/internal/config"
	"github.com/windnow/dlanalyzer/internal/report"
)

var contentTypes = map[string]string{
	report.FormatJSON:  "application/json; charset=utf-8",
	report.FormatYAML:  "application/yaml; charset=utf-8",
	report.FormatTable: "text/plain; charset=utf-8",
}

func (s *Server) configureRouters() {
	s.router.HandleFunc("/ping", s.handlePing()).Methods("GET")
	s.router.HandleFunc("/deadlocks", s.handleDeadlocks()).Methods("GET")
}

func (s *Server) handlePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, http.StatusOK, map[string]string{"result": "pong"})
	}
}

func (s *Server) handleDeadlocks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		format := query.Get("format")
		if format == "" {
			format = report.FormatJSON
		}
		contentType, ok := contentTypes[format]
		if !ok {
			s.badRequest(w, r, errUnknownFormat(format))
			return
		}

		start, end := s.conf.Filter.StartTime, s.conf.Filter.EndTime
		if query.Has("start") {
			start = query.Get("start")
		}
		if query.Has("end") {
			end = query.Get("end")
		}
		window, err := config.ParseWindow(start, end, s.location)
		if err != nil {
			s.badRequest(w, r, err)
			return
		}

		result, err := s.analyzer.Analyze(r.Context(), window)
		if err != nil {
			s.log.Errorf("[%s] Ошибка анализа: %s", r.RemoteAddr, err.Error())
			s.error(w, r, err)
			return
		}

		var body bytes.Buffer
		if err := report.Write(&body, result, format, s.location); err != nil {
			s.error(w, r, err)
			return
		}

		s.log.Infof("[%s] Отчет %s: пар %d", r.RemoteAddr, result.ID, len(result.Pairs))

		w.Header().Set("Content-Type", contentType)
		if common.AcceptsGzip(r.Header.Get("Accept-Encoding")) {
			w.Header().Set("Content-Encoding", "gzip")
			w.WriteHeader(http.StatusOK)
			if err := common.Compress(w, body.Bytes()); err != nil {
				s.log.Errorf("[%s] Ошибка сжатия ответа: %s", r.RemoteAddr, err.Error())
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(body.Bytes())
	}
}

type errUnknownFormat string

func (e errUnknownFormat) Error() string {
	return "неизвестный формат вывода: " + string(e)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.respond(w, r, http.StatusBadRequest, map[string]string{"status": "bad request", "error": err.Error()})
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, err error) {
	s.respond(w, r, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
