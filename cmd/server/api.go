package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tillerstead/tillerpro/internal/calculator"
	"github.com/tillerstead/tillerpro/internal/formulas"
)

const maxBody = 1 << 20

type sessionResponse struct {
	ID    string          `json:"id"`
	State json.RawMessage `json:"state"`
}

type toolResponse struct {
	Tool calculator.ToolInfo `json:"tool"`
	Form calculator.Form     `json:"form"`
	Last *calculator.Result  `json:"last,omitempty"`
}

type validationResponse struct {
	Error  string   `json:"error"`
	Tool   string   `json:"tool"`
	Fields []string `json:"fields"`
}

type materialsResponse struct {
	Materials []calculator.Material `json:"materials"`
	Lines     []string              `json:"lines"`
}

// withSession resolves {id} and holds the session lock for fn.
func (s *server) withSession(w http.ResponseWriter, r *http.Request, fn func(ps *projectSession)) {
	ps, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, errSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.log.Error("load session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	fn(ps)
}

func (s *server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	ps, err := s.sessions.Create(r.Context())
	if err != nil {
		s.log.Error("create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	data, _ := ps.state.MarshalJSON()
	writeJSON(w, http.StatusCreated, sessionResponse{ID: ps.id, State: data})
}

func (s *server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.sessions.Evict(id)
	if err := s.sessions.repo.Delete(r.Context(), id); err != nil {
		s.log.Error("delete session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleStateGet(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ps *projectSession) {
		data, err := ps.state.MarshalJSON()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to encode state")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
}

func (s *server) handleStatePut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}
	s.withSession(w, r, func(ps *projectSession) {
		results, err := s.sessions.Replace(r.Context(), ps, body)
		if err != nil {
			s.log.Warn("replace state", zap.String("session", ps.id), zap.Error(err))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"restored": results})
	})
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ps *projectSession) {
		writeJSON(w, http.StatusOK, ps.state.Summary())
	})
}

func (s *server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ps *projectSession) {
		ms := ps.calc.Materials()
		resp := materialsResponse{Materials: ms, Lines: make([]string, 0, len(ms))}
		for _, m := range ms {
			resp.Lines = append(resp.Lines, m.Name+": "+m.Display())
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func (s *server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ps *projectSession) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="tillerpro-materials.csv"`)
		if err := calculator.WriteCSV(w, ps.calc.Materials()); err != nil {
			s.log.Error("write csv", zap.Error(err))
		}
	})
}

func (s *server) handleToolGet(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ps *projectSession) {
		m, ok := ps.calc.Module(chi.URLParam(r, "tool"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown calculator")
			return
		}
		writeJSON(w, http.StatusOK, toolResponse{Tool: m.Spec().Info(), Form: m.Form(), Last: m.Last()})
	})
}

func (s *server) handleToolFields(w http.ResponseWriter, r *http.Request) {
	values, err := decodeFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withSession(w, r, func(ps *projectSession) {
		tool := chi.URLParam(r, "tool")
		m, ok := ps.calc.Module(tool)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown calculator")
			return
		}
		if err := ps.calc.SetFields(tool, values); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toolResponse{Tool: m.Spec().Info(), Form: m.Form(), Last: m.Last()})
	})
}

func (s *server) handleToolCalculate(w http.ResponseWriter, r *http.Request) {
	values, err := decodeFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withSession(w, r, func(ps *projectSession) {
		tool := chi.URLParam(r, "tool")
		if _, ok := ps.calc.Module(tool); !ok {
			writeError(w, http.StatusNotFound, "unknown calculator")
			return
		}
		if err := ps.calc.SetFields(tool, values); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := ps.calc.Calculate(tool)
		var verr *formulas.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
				Error:  verr.Error(),
				Tool:   verr.Tool,
				Fields: verr.Fields,
			})
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := s.sessions.persist(r.Context(), ps); err != nil {
			s.log.Error("save snapshot", zap.String("session", ps.id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "calculated but failed to save")
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

// handleCalculators lists every calculator and its fields.
func (s *server) handleCalculators(w http.ResponseWriter, r *http.Request) {
	specs, err := calculator.Order(calculator.DefaultSpecs())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tools := make([]calculator.ToolInfo, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, spec.Info())
	}
	writeJSON(w, http.StatusOK, map[string]any{"calculators": tools})
}

// decodeFields reads an optional JSON object of field values.
func decodeFields(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, fmt.Errorf("body must be a JSON object of field values")
	}
	return values, nil
}
