// Package pendingtoggle реализует HTTP-обработчики включения и отключения
// отложенных грантов администратором.
package pendingtoggle

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Handler управляет HTTP-запросами на переключение отложенных грантов.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики команд биллинга
	enable  bool         // true — включение, false — отключение
}

// Service описывает интерфейс бизнес-логики переключения грантов.
type Service interface {
	EnablePendingGrant(ctx context.Context, id int64, adminUID *string) (*models.TogglePendingGrantResult, error)
	DisablePendingGrant(ctx context.Context, id int64, adminUID *string) (*models.TogglePendingGrantResult, error)
}

// NewEnable создает Handler, включающий грант.
func NewEnable(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, enable: true}
}

// NewDisable создает Handler, отключающий грант.
func NewDisable(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, enable: false}
}

// ServeHTTP godoc
// @Summary Включить или отключить отложенный грант
// @Description Переключает флаг активности гранта. Повторный вызов идемпотентен.
// @Tags Admin
// @Produce  json
// @Param id path int true "ID гранта"
// @Success 200 {object} map[string]any "Флаг переключен"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 404 {object} response.ErrorResponse "Грант не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при переключении"
// @Security BearerAuth
// @Router /admin/grants/{id}/disable [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.pendingtoggle"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("failed to parse grant id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid grant id"))
		return
	}

	adminUID, ok := r.Context().Value(middlewarectx.UserUIDKey).(string)
	if !ok || adminUID == "" {
		log.Error("admin uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var result *models.TogglePendingGrantResult
	if h.enable {
		result, err = h.service.EnablePendingGrant(r.Context(), id, &adminUID)
	} else {
		result, err = h.service.DisablePendingGrant(r.Context(), id, &adminUID)
	}
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("pending grant toggle rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to toggle pending grant", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not toggle pending grant"))
		return
	}

	log.Info("succes to toggle pending grant",
		slog.Int64("id", id),
		slog.Bool("enable", h.enable),
		slog.Bool("changed", result.Changed))
	render.JSON(w, r, response.OKWithData(result))
}
