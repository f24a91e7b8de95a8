package scheduleapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	tripplanner "github.com/c360studio/skitrip/processor/trip-planner"
	"github.com/c360studio/skitrip/trip"
)

// GenerateBody is the request body for POST /schedule/generate.
type GenerateBody struct {
	PlanID        string             `json:"planId"`
	WinningResort trip.Resort        `json:"winningResort"`
	TripDates     trip.TripDates     `json:"tripDates"`
	Members       []trip.MemberInput `json:"members"`
	GeneratedBy   string             `json:"generatedBy"`
}

// Request normalizes the members and builds a pipeline request.
func (b GenerateBody) Request() (tripplanner.GenerateRequest, error) {
	members, err := trip.NormalizeMembers(b.Members)
	if err != nil {
		return tripplanner.GenerateRequest{}, err
	}
	return tripplanner.GenerateRequest{
		PlanID:        b.PlanID,
		WinningResort: b.WinningResort,
		TripDates:     b.TripDates,
		Members:       members,
		GeneratedBy:   b.GeneratedBy,
	}, nil
}

// RegenerateBody is the request body for POST /schedule/regenerate.
type RegenerateBody struct {
	GenerateBody
	Section          string                  `json:"section"`
	ExistingSchedule *trip.GeneratedSchedule `json:"existingSchedule"`
}

// AccommodationResponse is the response body for POST /schedule/accommodation.
type AccommodationResponse struct {
	Options []trip.AccommodationOption `json:"options"`
}

// SlopesBody is the request body for POST /agents/slopes.
type SlopesBody struct {
	Preferences json.RawMessage `json:"preferences"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body GenerateBody
	if !s.decode(w, r, &body) {
		return
	}
	req, err := body.Request()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	schedule, err := s.schedules.Generate(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body RegenerateBody
	if !s.decode(w, r, &body) {
		return
	}
	base, err := body.Request()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	schedule, err := s.schedules.Regenerate(r.Context(), tripplanner.RegenerateRequest{
		GenerateRequest: base,
		Section:         trip.Stage(body.Section),
		Existing:        body.ExistingSchedule,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) handleAccommodation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req tripplanner.AccommodationRequest
	if !s.decode(w, r, &req) {
		return
	}
	dates, err := trip.NormalizeTripDates(req.TripDates)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req.TripDates = dates

	options, err := s.schedules.PlanAccommodation(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccommodationResponse{Options: options})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	schedule, err := s.schedules.Get(r.Context(), ps.ByName("planId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) handleSlopes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body SlopesBody
	if !s.decode(w, r, &body) {
		return
	}

	result, err := s.advisor.Advise(r.Context(), body.Preferences)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
