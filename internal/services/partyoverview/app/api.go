package app

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/louisbranch/party-overview/internal/platform/httpx"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
)

// actorPayload is the JSON shape of an actor in the roster API.
type actorPayload struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	PlayerOwned bool            `json:"playerOwned"`
	System      json.RawMessage `json:"system,omitempty"`
}

type putActorRequest struct {
	Name        string          `json:"name"`
	PlayerOwned bool            `json:"playerOwned"`
	System      json.RawMessage `json:"system"`
}

type tokenPayload struct {
	ID      string `json:"id"`
	ActorID string `json:"actorId"`
}

type putSceneTokensRequest struct {
	Tokens []tokenPayload `json:"tokens"`
}

func toActorPayload(actor domain.Actor) actorPayload {
	return actorPayload{
		ID:          actor.ID,
		Name:        actor.Name,
		PlayerOwned: actor.PlayerOwned,
		System:      actor.System,
	}
}

func (h *Handler) handleListActors(w http.ResponseWriter, r *http.Request) {
	actors, err := h.store.ListActors(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	payload := make([]actorPayload, 0, len(actors))
	for _, actor := range actors {
		payload = append(payload, toActorPayload(actor))
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"actors": payload})
}

func (h *Handler) handlePutActor(w http.ResponseWriter, r *http.Request) {
	var req putActorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	actor := domain.Actor{
		ID:          strings.TrimSpace(r.PathValue("actorID")),
		Name:        strings.TrimSpace(req.Name),
		PlayerOwned: req.PlayerOwned,
		System:      req.System,
	}
	if err := h.store.PutActor(r.Context(), actor); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	h.logger.Printf("roster actor saved actor_id=%s player_owned=%t", actor.ID, actor.PlayerOwned)
	h.hub.NotifyAll()
	_ = httpx.WriteJSON(w, http.StatusOK, toActorPayload(actor))
}

func (h *Handler) handleDeleteActor(w http.ResponseWriter, r *http.Request) {
	actorID := strings.TrimSpace(r.PathValue("actorID"))
	if err := h.store.DeleteActor(r.Context(), actorID); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	h.logger.Printf("roster actor deleted actor_id=%s", actorID)
	h.hub.NotifyAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePutSceneTokens(w http.ResponseWriter, r *http.Request) {
	var req putSceneTokensRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	sceneID := strings.TrimSpace(r.PathValue("sceneID"))
	tokens := make([]domain.Token, 0, len(req.Tokens))
	for _, token := range req.Tokens {
		tokens = append(tokens, domain.Token{ID: token.ID, ActorID: token.ActorID, SceneID: sceneID})
	}
	if err := h.store.PutSceneTokens(r.Context(), sceneID, tokens); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	h.logger.Printf("scene tokens saved scene_id=%s tokens=%d", sceneID, len(tokens))
	h.hub.NotifyAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActivateScene(w http.ResponseWriter, r *http.Request) {
	sceneID := strings.TrimSpace(r.PathValue("sceneID"))
	if err := h.store.ActivateScene(r.Context(), sceneID); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	h.logger.Printf("scene activated scene_id=%s", sceneID)
	h.hub.NotifyAll()
	w.WriteHeader(http.StatusNoContent)
}
