package server

import (
	"net/http"
	"sweer/pkg/logg"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("Request served",
			zap.String(logg.Method, r.Method),
			zap.String(logg.Path, r.URL.Path),
			zap.Int(logg.HTTPCode, ww.Status()),
			zap.Duration(logg.Duration, time.Since(started)),
			zap.String(logg.RequestID, middleware.GetReqID(r.Context())),
		)
	})
}
