package models

import (
	"strconv"

	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
)

// AssembleIntervals собирает интервалы Pro-доступа пользователя из подписки
// и оверрайдов для передачи вычислителю. Завершённые подписки и подписки
// без значимого окна интервалов не дают.
func AssembleIntervals(sub *Subscription, overrides []*EntitlementOverride) []entitlement.Interval {
	var intervals []entitlement.Interval

	if sub != nil {
		startsAt, endsAt := sub.ActiveWindow()
		if startsAt != nil && endsAt != nil {
			source := entitlement.SourceSubscription
			if sub.Status == SubscriptionTrialing {
				source = entitlement.SourceTrial
			}
			created := sub.CreatedAt
			intervals = append(intervals, entitlement.Interval{
				Source:    source,
				StartsAt:  *startsAt,
				EndsAt:    *endsAt,
				SourceID:  sub.UserUID,
				CreatedAt: &created,
			})
		}
	}

	for _, o := range overrides {
		iv := o.Interval()
		iv.SourceID = "override:" + strconv.FormatInt(o.ID, 10)
		intervals = append(intervals, iv)
	}
	return intervals
}
