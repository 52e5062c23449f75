package handler

import "net/http"

type generateTitleRequest struct {
	Message string `json:"message" validate:"required"`
}

func (rt *Router) generateTitle(w http.ResponseWriter, r *http.Request) {
	var req generateTitleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	title, err := rt.titles.GenerateTitle(r.Context(), req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Text string `json:"text"`
	}{title})
}
