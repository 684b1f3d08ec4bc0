// File: internal/server/handlers.go
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/processor"
)

// Lot Handlers

func (s *HTTPServer) listLotsHandler(w http.ResponseWriter, r *http.Request) {
	lots, err := s.processor.ListLots(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, lots)
}

func (s *HTTPServer) createLotHandler(w http.ResponseWriter, r *http.Request) {
	var req processor.CreateLotRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	lot, err := s.processor.CreateLot(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, lot)
}

func (s *HTTPServer) getLotHandler(w http.ResponseWriter, r *http.Request) {
	lot, err := s.processor.GetLot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, lot)
}

func (s *HTTPServer) updateLotStatusHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.LotStatus `json:"status"`
	}
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	lot, err := s.processor.UpdateLotStatus(r.Context(), mux.Vars(r)["id"], body.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, lot)
}

// Supply-chain Event Handlers

func (s *HTTPServer) listCollectionHandler(w http.ResponseWriter, r *http.Request) {
	events, err := s.processor.ListCollectionEvents(r.Context(), r.URL.Query().Get("lotId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, events)
}

func (s *HTTPServer) recordCollectionHandler(w http.ResponseWriter, r *http.Request) {
	var req processor.CollectionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	event, err := s.processor.RecordCollection(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, event)
}

func (s *HTTPServer) listProcessingHandler(w http.ResponseWriter, r *http.Request) {
	events, err := s.processor.ListProcessingEvents(r.Context(), r.URL.Query().Get("lotId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, events)
}

func (s *HTTPServer) recordProcessingHandler(w http.ResponseWriter, r *http.Request) {
	var req processor.ProcessingRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	event, err := s.processor.RecordProcessing(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, event)
}

func (s *HTTPServer) listQualityHandler(w http.ResponseWriter, r *http.Request) {
	tests, err := s.processor.ListQualityTests(r.Context(), r.URL.Query().Get("lotId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, tests)
}

func (s *HTTPServer) recordQualityHandler(w http.ResponseWriter, r *http.Request) {
	var req processor.QualityTestRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	test, err := s.processor.RecordQualityTest(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, test)
}

func (s *HTTPServer) listPacksHandler(w http.ResponseWriter, r *http.Request) {
	packs, err := s.processor.ListPacks(r.Context(), r.URL.Query().Get("lotId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, packs)
}

func (s *HTTPServer) mintPackHandler(w http.ResponseWriter, r *http.Request) {
	var req processor.PackRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	pack, err := s.processor.MintPack(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, pack)
}

func (s *HTTPServer) getPackHandler(w http.ResponseWriter, r *http.Request) {
	pack, err := s.processor.GetPack(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, pack)
}

// Provenance and Ledger Handlers

// provenanceHandler returns the consumer-facing trace of a pack
func (s *HTTPServer) provenanceHandler(w http.ResponseWriter, r *http.Request) {
	trace, err := s.aggregator.Trace(r.Context(), mux.Vars(r)["packId"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, trace)
}

// verifyChainHandler verifies a lot's chain. An invalid chain is a
// successful response carrying valid=false.
func (s *HTTPServer) verifyChainHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.verifier.Verify(r.Context(), mux.Vars(r)["lotId"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, result)
}

func (s *HTTPServer) chainHandler(w http.ResponseWriter, r *http.Request) {
	chain, err := s.engine.ChainFor(r.Context(), mux.Vars(r)["lotId"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, chain)
}

// Compliance Handlers

func (s *HTTPServer) listThresholdsHandler(w http.ResponseWriter, r *http.Request) {
	thresholds, err := s.thresholds.List(r.Context(), r.URL.Query().Get("testType"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, thresholds)
}

func (s *HTTPServer) putThresholdHandler(w http.ResponseWriter, r *http.Request) {
	var threshold models.ComplianceThreshold
	if err := s.decodeJSON(w, r, &threshold); err != nil {
		s.writeError(w, err)
		return
	}

	stored, err := s.thresholds.Put(r.Context(), &threshold)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, stored)
}

func (s *HTTPServer) complianceReportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.reporter.Report(r.Context(), mux.Vars(r)["lotId"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, report)
}
