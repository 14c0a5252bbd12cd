package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/busybox42/lettera/internal/letter"
)

// serviceResponse is the envelope every endpoint answers with. The three
// lists are always present so clients never have to null-check them.
type serviceResponse struct {
	Errors         []letter.FieldError `json:"errors"`
	Warnings       []letter.FieldError `json:"warnings"`
	Informationals []letter.FieldError `json:"informationals"`
}

func emptyResponse() serviceResponse {
	return serviceResponse{
		Errors:         []letter.FieldError{},
		Warnings:       []letter.FieldError{},
		Informationals: []letter.FieldError{},
	}
}

type letterResponse struct {
	serviceResponse
	Letter *letter.Letter `json:"letter,omitempty"`
}

type lettersResponse struct {
	serviceResponse
	Letters []*letter.Letter `json:"letters"`
}

type searchParametersResponse struct {
	serviceResponse
	SearchParameters []letter.SearchParameter `json:"searchParameters"`
}

func (s *Server) handleGetLetter(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	l, err := s.svc.GetLetter(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, letterResponse{serviceResponse: emptyResponse(), Letter: l})
}

func (s *Server) handleFindLetters(w http.ResponseWriter, r *http.Request) {
	var params []letter.SearchParameter
	for key, values := range r.URL.Query() {
		for _, value := range values {
			params = append(params, letter.SearchParameter{Key: key, Value: value})
		}
	}

	letters, err := s.svc.FindLetters(r.Context(), params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, lettersResponse{serviceResponse: emptyResponse(), Letters: letters})
}

func (s *Server) handleCreateLetter(w http.ResponseWriter, r *http.Request) {
	var l letter.Letter
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		s.writeBadRequest(w, "letter", "Request body is not valid JSON")
		return
	}

	created, err := s.svc.CreateLetter(r.Context(), &l)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, letterResponse{serviceResponse: emptyResponse(), Letter: created})
}

func (s *Server) handleUpdateLetter(w http.ResponseWriter, r *http.Request) {
	var l letter.Letter
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		s.writeBadRequest(w, "letter", "Request body is not valid JSON")
		return
	}

	// The path identifies the letter; an id in the body is ignored.
	l.ID = mux.Vars(r)["id"]

	updated, err := s.svc.UpdateLetter(r.Context(), &l)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, letterResponse{serviceResponse: emptyResponse(), Letter: updated})
}

func (s *Server) handleDeleteLetter(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	deleted, err := s.svc.DeleteLetter(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, letterResponse{serviceResponse: emptyResponse(), Letter: deleted})
}

func (s *Server) handleGetSearchParameters(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	params, err := s.svc.GetSearchParameters(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, searchParametersResponse{
		serviceResponse:  emptyResponse(),
		SearchParameters: params,
	})
}

func (s *Server) handleSendLetter(w http.ResponseWriter, r *http.Request) {
	var req letter.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "letterRequest", "Request body is not valid JSON")
		return
	}

	if err := s.svc.SendLetter(r.Context(), &req); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, emptyResponse())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps domain errors onto HTTP statuses: rejected input is 400,
// a missing letter is 404, everything else is a 500 with the detail kept
// out of the response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := emptyResponse()

	if verr, ok := letter.AsValidationError(err); ok {
		resp.Errors = append(resp.Errors, verr.Errors...)
		s.writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	switch {
	case errors.Is(err, letter.ErrNotFound):
		resp.Errors = append(resp.Errors, letter.FieldError{Field: "id", Message: "Letter not found"})
		s.writeJSON(w, http.StatusNotFound, resp)
	case errors.Is(err, letter.ErrAlreadySent):
		resp.Errors = append(resp.Errors, letter.FieldError{Field: "id", Message: "Letter has already been sent and can no longer be changed"})
		s.writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, letter.ErrInvalidTag):
		resp.Errors = append(resp.Errors, letter.FieldError{Field: "searchParameter.key", Message: "Invalid search parameter key"})
		s.writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, letter.ErrDispatchRejected):
		resp.Errors = append(resp.Errors, letter.FieldError{Field: "sendMetaData.debugRecipients", Message: "Send rejected before delivery"})
		s.writeJSON(w, http.StatusBadRequest, resp)
	default:
		s.logger.Error("request failed", "error", err)
		resp.Errors = append(resp.Errors, letter.FieldError{Field: "letter", Message: "Internal server error"})
		s.writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func (s *Server) writeBadRequest(w http.ResponseWriter, field, message string) {
	resp := emptyResponse()
	resp.Errors = append(resp.Errors, letter.FieldError{Field: field, Message: message})
	s.writeJSON(w, http.StatusBadRequest, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
