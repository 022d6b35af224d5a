// Package claimgrants реализует HTTP-обработчик забора отложенных грантов.
//
// Handler находит по email пользователя все активные отложенные гранты
// и превращает их в оверрайды доступа. Каждый грант забирается один раз.
package claimgrants

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Handler управляет HTTP-запросами на забор отложенных грантов.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики команд биллинга
}

// Service описывает интерфейс бизнес-логики забора грантов.
type Service interface {
	ClaimPendingGrantsForUser(ctx context.Context, userUID, email, source string) (*models.ClaimGrantsResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Забрать отложенные гранты
// @Description Находит по email текущего пользователя активные отложенные гранты и применяет их.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Список примененных грантов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при заборе грантов"
// @Security BearerAuth
// @Router /grants/claim [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.claimgrants"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUIDKey).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	email, _ := r.Context().Value(middlewarectx.EmailKey).(string)

	result, err := h.service.ClaimPendingGrantsForUser(r.Context(), userUID, email, "manual")
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("claim rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to claim pending grants", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not claim pending grants"))
		return
	}

	log.Info("succes to claim pending grants", slog.Int("claimed", len(result.Claimed)))
	render.JSON(w, r, response.OKWithData(result))
}
