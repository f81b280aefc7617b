package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pactline/pactline/modules/commitments/presentation/controllers/dtos"
	"github.com/pactline/pactline/modules/commitments/presentation/mappers"
	"github.com/pactline/pactline/modules/commitments/services"
	"github.com/pactline/pactline/pkg/application"
	"github.com/pactline/pactline/pkg/httpapi"
	"github.com/pactline/pactline/pkg/middleware"
	"github.com/pactline/pactline/pkg/serrors"
)

// PublicLinkController serves the token-gated pages clients reach from
// approval and acceptance emails. No session auth: the token is the
// credential.
type PublicLinkController struct {
	app      application.Application
	links    *services.LinkService
	basePath string
}

func NewPublicLinkController(app application.Application) application.Controller {
	return &PublicLinkController{
		app:      app,
		links:    app.Service(services.LinkService{}).(*services.LinkService),
		basePath: "/public",
	}
}

func (c *PublicLinkController) Key() string {
	return c.basePath
}

func (c *PublicLinkController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/approvals/{token}", c.GetApproval).Methods(http.MethodGet)
	router.HandleFunc("/acceptances/{token}", c.GetAcceptance).Methods(http.MethodGet)

	writeRouter := r.PathPrefix(c.basePath).Subrouter()
	writeRouter.Use(middleware.WithTransaction())
	writeRouter.HandleFunc("/approvals/{token}", c.PostApproval).Methods(http.MethodPost)
	writeRouter.HandleFunc("/acceptances/{token}", c.PostAcceptance).Methods(http.MethodPost)
}

func (c *PublicLinkController) GetApproval(w http.ResponseWriter, r *http.Request) {
	info, err := c.links.GetApprovalInfo(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, info)
}

func (c *PublicLinkController) GetAcceptance(w http.ResponseWriter, r *http.Request) {
	info, err := c.links.GetAcceptanceInfo(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, info)
}

func (c *PublicLinkController) PostApproval(w http.ResponseWriter, r *http.Request) {
	dto, ok := decodeAction(w, r)
	if !ok {
		return
	}
	updated, cr, err := c.links.PostApproval(r.Context(), mux.Vars(r)["token"], dto.Action, dto.Comment)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	out := map[string]any{}
	if updated != nil {
		out["commitment"] = mappers.CommitmentToResponse(updated)
	}
	if cr != nil {
		out["change_request"] = mappers.ChangeRequestToResponse(cr)
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}

func (c *PublicLinkController) PostAcceptance(w http.ResponseWriter, r *http.Request) {
	dto, ok := decodeAction(w, r)
	if !ok {
		return
	}
	updated, err := c.links.PostAcceptance(r.Context(), mux.Vars(r)["token"], dto.Action, dto.Comment)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.CommitmentToResponse(updated))
}

func decodeAction(w http.ResponseWriter, r *http.Request) (dtos.PublicActionDTO, bool) {
	var dto dtos.PublicActionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, serrors.CodeValidation, "invalid json", nil)
		return dto, false
	}
	dto.Normalize()
	if dto.Action == "" {
		_ = httpapi.WriteError(w, http.StatusBadRequest, serrors.CodeValidation, "action is required", nil)
		return dto, false
	}
	return dto, true
}
