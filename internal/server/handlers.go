package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"procodus.dev/machine-monitor/internal/store"
)

// createMachineRequest is the POST /machines payload.
type createMachineRequest struct {
	Name                string            `json:"name"`
	Code                string            `json:"code"`
	Location            string            `json:"location"`
	NextMaintenanceDate string            `json:"nextMaintenanceDate"`
	ResponsibleEmail    string            `json:"responsibleEmail"`
	Thresholds          *store.Thresholds `json:"thresholds"`
}

// updateMachineRequest is the PUT /machines/{id} payload. Absent fields are
// left untouched.
type updateMachineRequest struct {
	Name                *string           `json:"name"`
	Code                *string           `json:"code"`
	Location            *string           `json:"location"`
	NextMaintenanceDate *string           `json:"nextMaintenanceDate"`
	ResponsibleEmail    *string           `json:"responsibleEmail"`
	Thresholds          *store.Thresholds `json:"thresholds"`
}

// appendVitalRequest is the POST /machines/{id}/vitals payload. Dimension
// fields are untyped so that non-numeric values degrade to null instead of
// rejecting the reading.
type appendVitalRequest struct {
	Temperature any `json:"temperature"`
	Vibration   any `json:"vibration"`
	Pressure    any `json:"pressure"`
	Timestamp   any `json:"timestamp"`
}

// appendVitalResponse pairs the stored vital with its evaluation outcome.
type appendVitalResponse struct {
	Vital    store.Vital `json:"vital"`
	Abnormal bool        `json:"abnormal"`
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Message string `json:"message"`
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status       string `json:"status"`
	MachineCount int    `json:"machineCount"`
}

// handleHealth reports liveness and the machine count.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.MachineCount(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		MachineCount: count,
	})
}

// handleListMachines returns all machines in insertion order.
func (s *Server) handleListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := s.store.ListMachines(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, machines)
}

// handleCreateMachine creates a machine, applying default thresholds.
func (s *Server) handleCreateMachine(w http.ResponseWriter, r *http.Request) {
	var req createMachineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var due time.Time
	if req.NextMaintenanceDate != "" {
		parsed, err := parseDate(req.NextMaintenanceDate)
		if err != nil {
			s.writeMessage(w, http.StatusBadRequest, "invalid nextMaintenanceDate")
			return
		}
		due = parsed
	}

	machine, err := s.store.CreateMachine(r.Context(), store.NewMachine{
		Name:                req.Name,
		Code:                req.Code,
		Location:            req.Location,
		NextMaintenanceDate: due,
		ResponsibleEmail:    req.ResponsibleEmail,
		Thresholds:          req.Thresholds,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("machine created", "machine_id", machine.ID, "name", machine.Name)
	s.writeJSON(w, http.StatusCreated, machine)
}

// handleUpdateMachine merges a partial update into the machine.
func (s *Server) handleUpdateMachine(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateMachineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := store.MachineUpdate{
		Name:             req.Name,
		Code:             req.Code,
		Location:         req.Location,
		ResponsibleEmail: req.ResponsibleEmail,
		Thresholds:       req.Thresholds,
	}

	if req.NextMaintenanceDate != nil {
		parsed, err := parseDate(*req.NextMaintenanceDate)
		if err != nil {
			s.writeMessage(w, http.StatusBadRequest, "invalid nextMaintenanceDate")
			return
		}
		upd.NextMaintenanceDate = &parsed
	}

	machine, err := s.store.UpdateMachine(r.Context(), id, upd)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("machine updated", "machine_id", machine.ID)
	s.writeJSON(w, http.StatusOK, machine)
}

// handleDeleteMachine removes a machine and all its vitals.
func (s *Server) handleDeleteMachine(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.DeleteMachine(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("machine deleted", "machine_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleListVitals returns the most recent vitals in ascending timestamp
// order.
func (s *Server) handleListVitals(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := store.DefaultVitalsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	vitals, err := s.store.ListVitals(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, vitals)
}

// handleAppendVital ingests a reading and runs the threshold evaluation
// synchronously.
func (s *Server) handleAppendVital(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req appendVitalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	machine, err := s.store.GetMachine(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	vital, err := s.store.AppendVital(r.Context(), store.NewVital{
		MachineID:   id,
		Temperature: numericOrNull(req.Temperature),
		Vibration:   numericOrNull(req.Vibration),
		Pressure:    numericOrNull(req.Pressure),
		Timestamp:   parseTimestamp(req.Timestamp),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.VitalsIngested.WithLabelValues(id).Inc()
	}

	eval := s.dispatcher.HandleVital(r.Context(), machine, vital)

	s.writeJSON(w, http.StatusCreated, appendVitalResponse{
		Vital:    vital,
		Abnormal: eval.Abnormal,
	})
}

// handleSimulateVital stores a synthetic reading biased to stay under the
// machine's thresholds. Simulated readings skip alert evaluation.
func (s *Server) handleSimulateVital(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	machine, err := s.store.GetMachine(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.genMu.Lock()
	reading := s.gen.Generate(machine.Thresholds)
	s.genMu.Unlock()
	reading.MachineID = id

	vital, err := s.store.AppendVital(r.Context(), reading)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.VitalsIngested.WithLabelValues(id).Inc()
	}

	s.writeJSON(w, http.StatusCreated, vital)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

// writeMessage writes an error response with an explicit message.
func (s *Server) writeMessage(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Message: message})
}

// writeError maps a store error to its HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		s.writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeMessage(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// numericOrNull coerces a decoded JSON value to a float pointer. Anything
// that is not a JSON number is stored as null.
func numericOrNull(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseTimestamp accepts an RFC 3339 string or epoch milliseconds. Anything
// else, including absence, falls back to the ingestion time.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case string:
		if parsed, err := parseDate(t); err == nil {
			return parsed
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}
