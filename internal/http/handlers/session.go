package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"lookbook/internal/domain"
)

type settingsRequest struct {
	Gender  string `json:"gender"`
	Remarks string `json:"remarks"`
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (a *App) Session(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, newSessionView(a.Studio.State()))
}

func (a *App) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	params, err := a.Studio.SetParams(domain.Params{Gender: domain.Gender(req.Gender), Remarks: req.Remarks})
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.json(w, http.StatusOK, newParamsView(params))
}

func (a *App) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "api_key required")
		return
	}
	if err := a.Studio.ChangeCredential(req.APIKey); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ResetCredentials(w http.ResponseWriter, r *http.Request) {
	a.Studio.ResetCredential()
	w.WriteHeader(http.StatusNoContent)
}
