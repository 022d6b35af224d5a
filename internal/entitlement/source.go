// Package entitlement содержит чистую доменную логику вычисления Pro-доступа:
// объединение временных интервалов от разных источников в единый статус
// и расчёт окна нового гранта с учётом уже имеющегося доступа.
// Пакет не выполняет операций ввода-вывода и может использоваться вне транзакций.
package entitlement

// Source обозначает источник, предоставивший интервал Pro-доступа.
type Source string

// Возможные источники Pro-доступа.
const (
	SourceInternalBypass Source = "internal_bypass"
	SourceSubscription   Source = "subscription"
	SourceTrial          Source = "trial"
	SourceAdminOverride  Source = "admin_override"
	SourcePendingGrant   Source = "pending_grant"
	SourcePromotion      Source = "promotion"
	SourceSystem         Source = "system"
	SourceMigration      Source = "migration"
)

// sourcePriority задаёт порядок приоритета источников при выборе
// «эффективного» источника для отображения. Меньшее значение выигрывает.
var sourcePriority = map[Source]int{
	SourceInternalBypass: 0,
	SourceSubscription:   1,
	SourceTrial:          2,
	SourceAdminOverride:  3,
	SourcePendingGrant:   4,
	SourcePromotion:      5,
	SourceSystem:         6,
	SourceMigration:      7,
}

// Priority возвращает числовой приоритет источника.
// Неизвестные источники получают приоритет ниже всех известных.
func (s Source) Priority() int {
	if p, ok := sourcePriority[s]; ok {
		return p
	}
	return len(sourcePriority)
}
