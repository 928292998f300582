package dialog

type State string

const (
	StateIdle State = "idle"

	// Пользовательский бот
	StateUserContactAdmin State = "user_contact_admin" // ввод сообщения админу

	// Тарифы (админ)
	StateAdmPlanName     State = "adm:plan:name"
	StateAdmPlanValue    State = "adm:plan:value"
	StateAdmPlanUnit     State = "adm:plan:unit" // выбор единицы кнопками
	StateAdmPlanPrice    State = "adm:plan:price"
	StateAdmPlanRename   State = "adm:plan:rename"
	StateAdmPlanReprice  State = "adm:plan:reprice"
	StateAdmPlanDuration State = "adm:plan:duration" // "30 days"

	// Пользователи (админ)
	StateAdmUserSearch State = "adm:user:search"
	StateAdmUserDM     State = "adm:user:dm"

	// Рассылка и настройки
	StateAdmBroadcast State = "adm:broadcast"
	StateAdmWelcome   State = "adm:welcome"
)

// Scope разделяет состояния двух ботов: у админа может быть диалог в обоих.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeAdmin Scope = "admin"
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}
