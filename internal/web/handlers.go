package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"vitalvest/internal/coordinator"
	"vitalvest/internal/sensor"
)

// handleState returns the current dashboard state as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.dash.Snapshot())
}

// handleHistory returns recent persisted readings, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "History storage disabled", http.StatusNotFound)
		return
	}
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 2000 {
			limit = n
		}
	}
	rows, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

// handleSessions returns per-hour monitoring session summaries.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "History storage disabled", http.StatusNotFound)
		return
	}
	sessions, err := s.history.Sessions(r.Context(), 48)
	if err != nil {
		http.Error(w, "Failed to read sessions", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

// Alert is one active condition derived from the latest reading.
type Alert struct {
	Level   string `json:"level"` // warning or critical
	Sensor  string `json:"sensor"`
	Message string `json:"message"`
}

// handleAlerts evaluates the latest reading against the vest thresholds.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	snap := s.dash.Snapshot()
	alerts := []Alert{}
	if snap.Latest != nil {
		alerts = evaluateAlerts(*snap.Latest)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

// evaluateAlerts applies the fixed clinical thresholds. Null values raise
// nothing; absence of data is a connection problem, not a health one.
func evaluateAlerts(r sensor.Reading) []Alert {
	alerts := []Alert{}
	if v := r.Body.ObjectTemperature; v != nil {
		switch {
		case *v >= 39.0:
			alerts = append(alerts, Alert{Level: "critical", Sensor: "mlx90614", Message: "Body temperature critically high"})
		case *v >= 37.8:
			alerts = append(alerts, Alert{Level: "warning", Sensor: "mlx90614", Message: "Body temperature elevated"})
		case *v <= 35.0:
			alerts = append(alerts, Alert{Level: "warning", Sensor: "mlx90614", Message: "Body temperature low"})
		}
	}
	if v := r.Hydration.Percentage; v != nil && *v < 40 {
		level := "warning"
		if *v < 25 {
			level = "critical"
		}
		alerts = append(alerts, Alert{Level: level, Sensor: "gsr", Message: "Hydration level low"})
	}
	if v := r.Ambient.Temperature; v != nil && *v >= 35 {
		alerts = append(alerts, Alert{Level: "warning", Sensor: "bme280", Message: "Ambient temperature high"})
	}
	return alerts
}

// handleSync pushes the latest reading back to the backend's write
// endpoints, for vests that record locally while offline.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		http.Error(w, "No backend configured", http.StatusNotFound)
		return
	}
	snap := s.dash.Snapshot()
	if snap.Latest == nil {
		http.Error(w, "No reading to sync", http.StatusConflict)
		return
	}
	rd := snap.Latest
	posts := map[string]any{
		"/bme": map[string]any{"temperatura": rd.Ambient.Temperature, "humedad": rd.Ambient.Humidity, "presion": rd.Ambient.Pressure},
		"/mlx": map[string]any{"temp_obj": rd.Body.ObjectTemperature, "temp_amb": rd.Body.AmbientTemperature},
		"/gsr": map[string]any{"conductancia": rd.Hydration.Conductance, "porcentaje": rd.Hydration.Percentage, "estado": rd.Hydration.State},
		"/mpu": map[string]any{"aceleracion": rd.Motion.Acceleration, "giroscopio": rd.Motion.Gyroscope},
	}
	synced := 0
	for path, record := range posts {
		if err := s.backend.PostReading(r.Context(), path, record); err != nil {
			http.Error(w, "Sync failed at "+path, http.StatusBadGateway)
			return
		}
		synced++
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "synced": synced})
}

// handleReconnect forces the upstream socket through a stop/start cycle.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	s.coord.Send(nil, coordinator.Command{Type: coordinator.CmdStopWebSocket})
	s.coord.Send(nil, coordinator.Command{Type: coordinator.CmdStartWebSocket})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "triggered"})
}

// handlePolling starts or stops the REST polling loop.
func (s *Server) handlePolling(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active   bool `json:"active"`
		Interval int  `json:"interval,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Active {
		s.coord.Send(nil, coordinator.Command{Type: coordinator.CmdStartAPIPolling, Interval: req.Interval})
	} else {
		s.coord.Send(nil, coordinator.Command{Type: coordinator.CmdStopAPIPolling})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "active": req.Active})
}
