package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/presentation/controllers/dtos"
	"github.com/pactline/pactline/modules/commitments/presentation/mappers"
	"github.com/pactline/pactline/modules/commitments/services"
	"github.com/pactline/pactline/pkg/application"
	"github.com/pactline/pactline/pkg/composables"
	"github.com/pactline/pactline/pkg/httpapi"
	"github.com/pactline/pactline/pkg/middleware"
	"github.com/pactline/pactline/pkg/serrors"
)

type CommitmentAPIController struct {
	app         application.Application
	commitments *services.CommitmentService
	resolutions *services.ResolutionService
	timelines   *services.TimelineService
	basePath    string
}

func NewCommitmentAPIController(app application.Application) application.Controller {
	return &CommitmentAPIController{
		app:         app,
		commitments: app.Service(services.CommitmentService{}).(*services.CommitmentService),
		resolutions: app.Service(services.ResolutionService{}).(*services.ResolutionService),
		timelines:   app.Service(services.TimelineService{}).(*services.TimelineService),
		basePath:    "/commitments/api",
	}
}

func (c *CommitmentAPIController) Key() string {
	return c.basePath
}

func (c *CommitmentAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/commitments/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/commitments/{id}/change-requests", c.ListChangeRequests).Methods(http.MethodGet)
	router.HandleFunc("/commitments/{id}/timeline", c.Timeline).Methods(http.MethodGet)
	router.HandleFunc("/roots/{rootId}/versions", c.Versions).Methods(http.MethodGet)
	router.HandleFunc("/roots/{rootId}/current", c.Current).Methods(http.MethodGet)

	writeRouter := r.PathPrefix(c.basePath).Subrouter()
	writeRouter.Use(middleware.WithTransaction())
	writeRouter.HandleFunc("/commitments", c.Create).Methods(http.MethodPost)
	writeRouter.HandleFunc("/commitments/{id}/send-approval", c.SendApproval).Methods(http.MethodPost)
	writeRouter.HandleFunc("/commitments/{id}/mark-delivered", c.MarkDelivered).Methods(http.MethodPost)
	writeRouter.HandleFunc("/commitments/{id}/send-acceptance", c.SendAcceptance).Methods(http.MethodPost)
	writeRouter.HandleFunc("/commitments/{id}/close", c.Close).Methods(http.MethodPost)
	writeRouter.HandleFunc("/commitments/{id}/cancel", c.Cancel).Methods(http.MethodPost)
	writeRouter.HandleFunc("/commitments/{id}/change-requests/{crId}/accept", c.AcceptChangeRequest).Methods(http.MethodPost)
	writeRouter.HandleFunc("/commitments/{id}/change-requests/{crId}/reject", c.RejectChangeRequest).Methods(http.MethodPost)
}

func (c *CommitmentAPIController) Create(w http.ResponseWriter, r *http.Request) {
	var dto dtos.CreateCommitmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, serrors.CodeValidation, "invalid json", nil)
		return
	}
	if errs, ok := dto.Ok(); !ok {
		_ = httpapi.WriteError(w, http.StatusBadRequest, serrors.CodeValidation, "validation failed", errs)
		return
	}

	created, err := c.commitments.Create(actorContext(r), dto.ToTerms())
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, mappers.CommitmentToResponse(created))
}

func (c *CommitmentAPIController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	found, err := c.commitments.GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.CommitmentToResponse(found))
}

func (c *CommitmentAPIController) SendApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	updated, token, err := c.commitments.SendApproval(actorContext(r), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"commitment": mappers.CommitmentToResponse(updated),
		"token":      token,
	})
}

func (c *CommitmentAPIController) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	updated, err := c.commitments.MarkDelivered(actorContext(r), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.CommitmentToResponse(updated))
}

func (c *CommitmentAPIController) SendAcceptance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	resend := strings.EqualFold(r.URL.Query().Get("resend"), "true")
	updated, token, err := c.commitments.SendAcceptance(actorContext(r), id, resend)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"commitment": mappers.CommitmentToResponse(updated),
		"token":      token,
	})
}

func (c *CommitmentAPIController) Close(w http.ResponseWriter, r *http.Request) {
	c.simpleTransition(w, r, c.commitments.Close)
}

func (c *CommitmentAPIController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.simpleTransition(w, r, c.commitments.Cancel)
}

func (c *CommitmentAPIController) AcceptChangeRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	crID, ok := pathUUID(w, r, "crId")
	if !ok {
		return
	}
	var dto dtos.ResolveChangeRequestDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, serrors.CodeValidation, "invalid json", nil)
			return
		}
	}
	if errs, ok := dto.Ok(); !ok {
		_ = httpapi.WriteError(w, http.StatusBadRequest, serrors.CodeValidation, "validation failed", errs)
		return
	}

	ctx := actorContext(r)
	current, err := c.commitments.GetByID(ctx, id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	currency := ""
	if amount := current.Terms().Amount; amount != nil {
		currency = amount.Currency().Code
	}

	next, err := c.resolutions.AcceptChangeRequest(ctx, id, crID, dto.ToOverrides(currency))
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.CommitmentToResponse(next))
}

func (c *CommitmentAPIController) RejectChangeRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	crID, ok := pathUUID(w, r, "crId")
	if !ok {
		return
	}
	updated, err := c.resolutions.RejectChangeRequest(actorContext(r), id, crID)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.CommitmentToResponse(updated))
}

func (c *CommitmentAPIController) ListChangeRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	items, err := c.commitments.ListChangeRequests(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	out := make([]mappers.ChangeRequestResponse, 0, len(items))
	for _, cr := range items {
		out = append(out, mappers.ChangeRequestToResponse(cr))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *CommitmentAPIController) Versions(w http.ResponseWriter, r *http.Request) {
	rootID, ok := pathUUID(w, r, "rootId")
	if !ok {
		return
	}
	versions, err := c.resolutions.ListVersions(r.Context(), rootID)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	out := make([]mappers.CommitmentResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, mappers.CommitmentToResponse(v))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *CommitmentAPIController) Current(w http.ResponseWriter, r *http.Request) {
	rootID, ok := pathUUID(w, r, "rootId")
	if !ok {
		return
	}
	current, err := c.resolutions.CurrentVersion(r.Context(), rootID)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.CommitmentToResponse(current))
}

func (c *CommitmentAPIController) Timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	order := services.OldestFirst
	if strings.EqualFold(r.URL.Query().Get("order"), string(services.NewestFirst)) {
		order = services.NewestFirst
	}
	entries, err := c.timelines.GetTimeline(r.Context(), id, order)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (c *CommitmentAPIController) simpleTransition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id uuid.UUID) (*commitment.Commitment, error),
) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	updated, err := op(actorContext(r), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.CommitmentToResponse(updated))
}

func pathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[key])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, serrors.CodeValidation, "invalid "+key, nil)
		return uuid.Nil, false
	}
	return id, true
}

// actorContext tags the request context with the internal actor identity
// taken from headers. Defaults to the system actor when absent.
func actorContext(r *http.Request) context.Context {
	name := strings.TrimSpace(r.Header.Get("X-Actor-Name"))
	if name == "" {
		return r.Context()
	}
	return composables.WithActor(r.Context(), composables.Actor{
		Type:  composables.ActorTypeInternal,
		Name:  name,
		Email: strings.TrimSpace(r.Header.Get("X-Actor-Email")),
	})
}
