// Package status вычисляет Pro-статус пользователя на момент запроса.
// Статус никогда не хранится: он выводится из подписки и оверрайдов
// при каждом чтении, короткоживущий кеш лишь снижает нагрузку на базу.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/cache"
	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage"
)

// statusCacheTTL — время жизни снимка статуса в кеше. Снимок короткоживущий:
// границы окон двигает время, а не только команды.
const statusCacheTTL = time.Minute

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
}

// Service отвечает на запросы Pro-статуса.
type Service struct {
	store storage.Store
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(store storage.Store, c Cache, log *slog.Logger) *Service {
	return &Service{store: store, cache: c, log: log}
}

// GetProStatus возвращает снимок Pro-статуса пользователя. Для внутренних
// пользователей доступ безусловный и к хранилищу обращения нет.
// isInternal приходит от вызывающей стороны: движок этот признак не вычисляет.
func (s *Service) GetProStatus(ctx context.Context, userUID string, isInternal bool) (*models.ProStatus, error) {
	const op = "status.GetProStatus"

	now := time.Now().UTC()

	if isInternal {
		return &models.ProStatus{
			Entitlement: entitlement.Evaluate(now, true, nil),
		}, nil
	}

	cacheKey := cache.StatusKey(userUID)
	var cached models.ProStatus
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read status cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.store.GetSubscription(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	overrides, err := s.store.ListOverrides(ctx, userUID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &models.ProStatus{
		Subscription: sub,
		Entitlement:  entitlement.Evaluate(now, false, models.AssembleIntervals(sub, overrides)),
	}

	if err := s.cache.Set(cacheKey, result, statusCacheTTL); err != nil {
		s.log.Warn("failed to cache status", slog.String("key", cacheKey), sl.Err(err))
	}
	return result, nil
}
