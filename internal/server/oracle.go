package server

import (
	"net/http"
)

// getProposal handles GET /api/markets/{id}/oracle.
func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.deps.Oracle.Proposal(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposal(p))
}

// propose handles POST /api/markets/{id}/oracle/propose.
func (s *Server) propose(w http.ResponseWriter, r *http.Request) {
	id, acct, ok := s.call(w, r)
	if !ok {
		return
	}
	var req proposeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := parseOutcome(req.Outcome)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bond := s.deps.Oracle.MinBond()
	if req.Bond != "" {
		if bond, err = parseAmount("bond", req.Bond, true); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	p, err := s.deps.Oracle.Propose(r.Context(), acct, id, outcome, bond)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProposal(p))
}

// dispute handles POST /api/markets/{id}/oracle/dispute.
func (s *Server) dispute(w http.ResponseWriter, r *http.Request) {
	id, acct, ok := s.call(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Oracle.Dispute(r.Context(), acct, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposal(p))
}

// settle handles POST /api/markets/{id}/oracle/settle. Admin only.
func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	id, acct, ok := s.call(w, r)
	if !ok {
		return
	}
	var req settleRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ruling, err := parseOutcome(req.Outcome)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.deps.Oracle.Settle(r.Context(), acct, id, ruling)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposal(p))
}

// finalize handles POST /api/markets/{id}/oracle/finalize. Anyone may call it.
func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := s.deps.Oracle.Finalize(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{MarketID: id, Outcome: outcome})
}
