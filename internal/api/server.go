// Package api is the booth-terminal and audit surface of the vote ledger.
// It is glue: every invariant lives in the ballot, ledger and booth
// packages, the handlers translate HTTP to those calls and back.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/khurramrashidd/BharatVotes/internal/auth"
	"github.com/khurramrashidd/BharatVotes/internal/ballot"
	"github.com/khurramrashidd/BharatVotes/internal/booth"
	"github.com/khurramrashidd/BharatVotes/internal/ledger"
	"github.com/khurramrashidd/BharatVotes/internal/roster"
)

type Server struct {
	ledger   *ledger.Ledger
	ballots  *ballot.Activation
	casting  *booth.CastingService
	roster   *roster.Registry
	officers *auth.Officers
}

func NewServer(l *ledger.Ledger, ballots *ballot.Activation, casting *booth.CastingService,
	registry *roster.Registry, officers *auth.Officers) *Server {
	return &Server{
		ledger:   l,
		ballots:  ballots,
		casting:  casting,
		roster:   registry,
		officers: officers,
	}
}

// Routes wires the HTTP surface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/activate", s.handleActivate)
	mux.HandleFunc("POST /api/deactivate", s.handleDeactivate)
	mux.HandleFunc("GET /api/ballot/{booth}", s.handlePollBallot)
	mux.HandleFunc("POST /api/votes", s.handleCastVote)
	mux.HandleFunc("GET /api/receipt/{booth}", s.handlePollReceipt)
	mux.HandleFunc("GET /api/verify", s.handleVerify)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/candidates", s.handleListCandidates)
	mux.HandleFunc("POST /api/candidates", s.handleAddCandidate)

	return WithLogging(mux)
}

// requireOfficer authenticates HTTP basic credentials against the officer
// registry, optionally scoped to one booth.
func (s *Server) requireOfficer(w http.ResponseWriter, r *http.Request, boothID string) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="bharatvotes"`)
		ErrorResponse(w, http.StatusUnauthorized, "officer credentials required")
		return false
	}

	if err := s.officers.Authenticate(username, password, boothID); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			ErrorResponse(w, http.StatusUnauthorized, "officer authentication failed")
		} else {
			slog.Error("officer lookup failed", "error", err)
			ErrorResponse(w, http.StatusInternalServerError, "authentication unavailable")
		}
		return false
	}

	return true
}

type activateRequest struct {
	VoterID  string `json:"voter_id"`
	BoothID  string `json:"booth_id"`
	Note     string `json:"note"`
	Override bool   `json:"override"`
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.VoterID == "" || req.BoothID == "" {
		ErrorResponse(w, http.StatusBadRequest, "voter_id and booth_id are required")
		return
	}
	if !s.requireOfficer(w, r, req.BoothID) {
		s.ballots.RecordRejection(req.BoothID, req.VoterID, "activation denied: officer authentication failed")
		return
	}

	var session *ballot.Session
	var err error
	if req.Override {
		if req.Note == "" {
			req.Note = "manual-override"
		}
		session, err = s.ballots.Override(req.VoterID, req.BoothID, req.Note)
	} else {
		session, err = s.ballots.Activate(req.VoterID, req.BoothID, req.Note)
	}
	if err != nil {
		slog.Error("ballot activation failed", "booth", req.BoothID, "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to activate ballot")
		return
	}

	slog.Info("ballot activated", "booth", req.BoothID, "override", req.Override, "note", req.Note)
	JSONResponse(w, http.StatusOK, session)
}

type deactivateRequest struct {
	BoothID string `json:"booth_id"`
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	var req deactivateRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.BoothID == "" {
		ErrorResponse(w, http.StatusBadRequest, "booth_id is required")
		return
	}
	if !s.requireOfficer(w, r, req.BoothID) {
		s.ballots.RecordRejection(req.BoothID, "", "deactivation denied: officer authentication failed")
		return
	}

	if err := s.ballots.Deactivate(req.BoothID); err != nil {
		slog.Error("ballot deactivation failed", "booth", req.BoothID, "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to deactivate ballot")
		return
	}

	JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pollBallotResponse struct {
	Active     bool               `json:"active"`
	VoterID    string             `json:"voter_id,omitempty"`
	Candidates []roster.Candidate `json:"candidates,omitempty"`
}

func (s *Server) handlePollBallot(w http.ResponseWriter, r *http.Request) {
	boothID := r.PathValue("booth")

	session, err := s.ballots.CurrentSession(boothID)
	if err != nil {
		slog.Error("session lookup failed", "booth", boothID, "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to read ballot state")
		return
	}
	if session == nil {
		JSONResponse(w, http.StatusOK, pollBallotResponse{Active: false})
		return
	}

	candidates, err := s.roster.List()
	if err != nil {
		slog.Error("roster lookup failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to load candidates")
		return
	}

	JSONResponse(w, http.StatusOK, pollBallotResponse{
		Active:     true,
		VoterID:    session.VoterID,
		Candidates: candidates,
	})
}

type castVoteRequest struct {
	VoterID     string `json:"voter_id"`
	CandidateID string `json:"candidate_id"`
	BoothID     string `json:"booth_id"`
}

type castVoteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Receipt string `json:"receipt"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.VoterID == "" || req.CandidateID == "" || req.BoothID == "" {
		ErrorResponse(w, http.StatusBadRequest, "voter_id, candidate_id and booth_id are required")
		return
	}

	// Roster presence is the collaborator-side check; the ledger itself
	// treats candidate ids as opaque.
	known, err := s.roster.Exists(req.CandidateID)
	if err != nil {
		slog.Error("roster lookup failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to check candidate")
		return
	}
	if !known {
		ErrorResponse(w, http.StatusBadRequest, "unknown candidate")
		return
	}

	receipt, err := s.casting.CastVote(req.VoterID, req.CandidateID, req.BoothID)
	if err != nil {
		switch {
		case ballot.IsNotActive(err):
			ErrorResponse(w, http.StatusForbidden, "ballot not active or session expired")
		case ledger.IsAlreadyVoted(err):
			ErrorResponse(w, http.StatusConflict, "voter has already voted")
		default:
			slog.Error("vote cast failed", "booth", req.BoothID, "error", err)
			ErrorResponse(w, http.StatusInternalServerError, "failed to record vote")
		}
		return
	}

	slog.Info("vote recorded", "booth", req.BoothID)
	JSONResponse(w, http.StatusOK, castVoteResponse{
		Status:  "ok",
		Message: "vote recorded on ledger",
		Receipt: receipt,
	})
}

type pollReceiptResponse struct {
	Has         bool      `json:"has"`
	Receipt     string    `json:"receipt,omitempty"`
	CandidateID string    `json:"candidate_id,omitempty"`
	BoothID     string    `json:"booth_id,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

func (s *Server) handlePollReceipt(w http.ResponseWriter, r *http.Request) {
	boothID := r.PathValue("booth")

	block, err := s.ledger.LatestReceipt(boothID)
	if err != nil {
		slog.Error("receipt lookup failed", "booth", boothID, "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to read receipt")
		return
	}
	if block == nil {
		JSONResponse(w, http.StatusOK, pollReceiptResponse{Has: false})
		return
	}

	// The raw voter id is never exposed here, only fields safe to show at
	// the booth.
	JSONResponse(w, http.StatusOK, pollReceiptResponse{
		Has:         true,
		Receipt:     block.Receipt,
		CandidateID: block.CandidateID,
		BoothID:     block.BoothID,
		Timestamp:   block.Timestamp,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.VerifyIntegrity()
	if err != nil {
		slog.Error("verification failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to verify ledger")
		return
	}

	if !report.Valid {
		slog.Error("TAMPERING DETECTED in vote ledger", "reason", report.Reason)
	}

	JSONResponse(w, http.StatusOK, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.ledger.Blocks()
	if err != nil {
		slog.Error("ledger read failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}

	candidates, err := s.roster.List()
	if err != nil {
		slog.Error("roster lookup failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to load candidates")
		return
	}

	JSONResponse(w, http.StatusOK, booth.Tally(blocks, candidates))
}

type activityEvent struct {
	Type string    `json:"type"`
	Desc string    `json:"desc"`
	Time time.Time `json:"time"`
}

const activityFeedLimit = 10

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.ledger.Blocks()
	if err != nil {
		slog.Error("ledger read failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}

	feed := make([]activityEvent, 0, activityFeedLimit*2)
	for i := len(blocks) - 1; i >= 0 && len(feed) < activityFeedLimit; i-- {
		b := &blocks[i]
		feed = append(feed, activityEvent{
			Type: "vote",
			Desc: "vote recorded (hash: " + b.BlockHash[:8] + "...)",
			Time: b.Timestamp,
		})
	}

	audit, err := s.ballots.RecentAudit(activityFeedLimit)
	if err != nil {
		slog.Error("audit read failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to read audit trail")
		return
	}
	for _, e := range audit {
		feed = append(feed, activityEvent{
			Type: e.Kind,
			Desc: "booth " + e.BoothID + ": " + e.Note,
			Time: e.Timestamp,
		})
	}

	// Votes and audit events arrive as two separate newest-first runs.
	sort.Slice(feed, func(i, j int) bool {
		return feed[i].Time.After(feed[j].Time)
	})

	JSONResponse(w, http.StatusOK, feed)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.roster.List()
	if err != nil {
		slog.Error("roster lookup failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to load candidates")
		return
	}
	JSONResponse(w, http.StatusOK, candidates)
}

func (s *Server) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	var c roster.Candidate
	if err := ParseJSONBody(r, &c); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if c.CandidateID == "" {
		ErrorResponse(w, http.StatusBadRequest, "candidate_id is required")
		return
	}
	if !s.requireOfficer(w, r, "") {
		return
	}

	if err := s.roster.Add(&c); err != nil {
		slog.Error("candidate store failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "failed to store candidate")
		return
	}

	JSONResponse(w, http.StatusCreated, c)
}
