package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/tillerstead/tillerpro/internal/formulas"
)

var errUnknownEstimate = errors.New("unknown estimate")

// estimators are the stateless quick calculators, keyed by URL kind.
var estimators = map[string]func([]byte) (any, error){
	"mortar-range":   estimator(formulas.MortarRange),
	"grout-tcna":     estimator(formulas.GroutTCNA),
	"slope-estimate": estimator(formulas.SlopeEstimate),
	"deck-mud":       estimator(formulas.DeckMud),
	"primer":         estimator(formulas.Primer),
	"sealant":        estimator(formulas.SealantTubes),
	"sealer":         estimator(formulas.Sealer),
	"labor":          estimator(formulas.Labor),
}

func estimator[I, O any](fn func(I) (O, error)) func([]byte) (any, error) {
	return func(body []byte) (any, error) {
		var in I
		if len(bytes.TrimSpace(body)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(body))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&in); err != nil {
				return nil, fmt.Errorf("decode input: %w", err)
			}
		}
		return fn(in)
	}
}

func estimateKinds() []string {
	kinds := make([]string, 0, len(estimators))
	for k := range estimators {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func runEstimate(kind string, body []byte) (any, error) {
	fn, ok := estimators[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownEstimate, kind)
	}
	return fn(body)
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	kind := chi.URLParam(r, "kind")
	out, err := runEstimate(kind, body)
	var verr *formulas.ValidationError
	switch {
	case errors.Is(err, errUnknownEstimate):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: verr.Error(), Tool: verr.Tool, Fields: verr.Fields})
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.metrics.ObserveCalculation(kind, nil)
		writeJSON(w, http.StatusOK, out)
	}
}
