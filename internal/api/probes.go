package api

import (
	"net/http"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return "ok", nil
}

func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	status := s.services.Health.GetHealthStatus()
	if !status.Healthy {
		return nil, &APIError{Code: ServiceNotReady}
	}
	return status, nil
}
