package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/calcflow-labs/calcflow/internal/batch"
	"github.com/calcflow-labs/calcflow/internal/engine"
	"github.com/calcflow-labs/calcflow/internal/graph"
	"github.com/calcflow-labs/calcflow/internal/table"
)

type errorResponse struct {
	Error string `json:"error"`
	Row   int    `json:"row,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err.Error())
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type graphEvaluateRequest struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

func (s *Server) handleGraphEvaluate(w http.ResponseWriter, r *http.Request) {
	var req graphEvaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	eval := graph.Evaluate(req.Nodes, req.Edges, s.logger)
	s.respondJSON(w, http.StatusOK, eval)
}

type datasetFormulaRequest struct {
	Dataset      table.Dataset                `json:"dataset"`
	ColumnName   string                       `json:"column_name"`
	Formula      string                       `json:"formula"`
	ColumnUnits  map[string]string            `json:"column_units,omitempty"`
	Scalars      map[string]batch.ScalarInput `json:"scalars,omitempty"`
	UnitOverride string                       `json:"unit_override,omitempty"`
}

func (s *Server) handleDatasetFormula(w http.ResponseWriter, r *http.Request) {
	var req datasetFormulaRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := batch.Evaluate(batch.Request{
		Dataset:      req.Dataset,
		ColumnName:   req.ColumnName,
		Formula:      req.Formula,
		ColumnUnits:  req.ColumnUnits,
		Scalars:      req.Scalars,
		UnitOverride: req.UnitOverride,
		Logger:       s.logger,
	})
	if err != nil {
		var rowErr *batch.RowError
		if errors.As(err, &rowErr) && rowErr.Row > 0 {
			s.respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: rowErr.Message, Row: rowErr.Row})
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

type datasetTransformRequest struct {
	Dataset    table.Dataset         `json:"dataset"`
	Operations []table.OperationSpec `json:"operations"`
	Sources    []table.Dataset       `json:"sources,omitempty"`
}

func (s *Server) handleDatasetTransform(w http.ResponseWriter, r *http.Request) {
	var req datasetTransformRequest
	if !s.decode(w, r, &req) {
		return
	}

	ops, err := table.Operations(req.Operations)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := table.ApplyAll(req.Dataset, ops, req.Sources)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

type datasetJoinRequest struct {
	Dataset       table.Dataset `json:"dataset"`
	Lookup        table.Dataset `json:"lookup"`
	LeftKey       string        `json:"left_key"`
	RightKey      string        `json:"right_key"`
	TargetColumns []string      `json:"target_columns"`
}

func (s *Server) handleDatasetJoin(w http.ResponseWriter, r *http.Request) {
	var req datasetJoinRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := table.Join(req.Dataset, req.Lookup, req.LeftKey, req.RightKey, req.TargetColumns)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

type datasetFilterRequest struct {
	Dataset  table.Dataset `json:"dataset"`
	Column   string        `json:"column"`
	Operator string        `json:"operator"`
	Value    any           `json:"value"`
}

func (s *Server) handleDatasetFilter(w http.ResponseWriter, r *http.Request) {
	var req datasetFilterRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := table.Filter(req.Dataset, req.Column, req.Operator, req.Value)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	eng, err := engine.New(engine.Config{
		Workbook: s.workbook,
		Store:    s.store,
		Logger:   s.logger,
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = eng.Close() }()

	report, runErr := eng.Run(r.Context())
	if runErr != nil && report == nil {
		s.respondError(w, http.StatusInternalServerError, runErr.Error())
		return
	}
	// a failed run still carries the partial report and the recorded run
	status := http.StatusOK
	if runErr != nil {
		status = http.StatusUnprocessableEntity
	}
	s.respondJSON(w, status, report)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}
