// Пакет role: закрытый перечислимый тип роли пользователя jobboard.
// Роль приходит из IdP строкой (группа или realm role) и сразу
// превращается в Role; сравнение сырых строк за пределами пакета запрещено.
package role

import "strings"

// Role: роль субъекта сессии.
// Нулевое значение: Anonymous: роль отсутствует или не распознана.
type Role uint8

const (
	// Anonymous: роль не определена (гость или неизвестный claim).
	Anonymous Role = iota
	// Candidate: соискатель.
	Candidate
	// Company: представитель компании-работодателя.
	Company
	// Admin: администратор площадки.
	Admin
)

// names: каноническое строковое представление ролей.
var names = [...]string{
	Anonymous: "anonymous",
	Candidate: "candidate",
	Company:   "company",
	Admin:     "admin",
}

// priority: приоритет роли при выборе из нескольких совпадений.
// Чем выше, тем важнее. Candidate и Company не упорядочены по правам,
// приоритет нужен только для детерминированного выбора.
var priority = map[Role]int{
	Anonymous: 0,
	Candidate: 1,
	Company:   2,
	Admin:     3,
}

// String возвращает каноническое имя роли.
func (r Role) String() string {
	if int(r) < len(names) {
		return names[r]
	}
	return names[Anonymous]
}

// Valid сообщает, является ли значение одной из объявленных ролей
// (включая Anonymous).
func (r Role) Valid() bool {
	return int(r) < len(names)
}

// Authenticated: true для любой роли, кроме Anonymous.
func (r Role) Authenticated() bool {
	return r.Valid() && r != Anonymous
}

// MarshalText реализует encoding.TextMarshaler (JSON-сессии, ответы API).
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
// Неизвестное значение превращается в Anonymous без ошибки.
func (r *Role) UnmarshalText(text []byte) error {
	*r = Parse(string(text))
	return nil
}

// Parse преобразует строку в Role. Никогда не возвращает ошибку:
// нераспознанное значение: Anonymous.
func Parse(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "candidate":
		return Candidate
	case "company":
		return Company
	case "admin":
		return Admin
	default:
		return Anonymous
	}
}

// Highest возвращает роль с максимальным приоритетом из набора.
// Пустой набор: Anonymous.
func Highest(roles ...Role) Role {
	best := Anonymous
	for _, r := range roles {
		if !r.Valid() {
			continue
		}
		if priority[r] > priority[best] {
			best = r
		}
	}
	return best
}

// GroupMapping: соответствие групп IdP ролям.
type GroupMapping struct {
	AdminGroups     []string
	CompanyGroups   []string
	CandidateGroups []string
}

// FromGroups определяет роль по группам пользователя в IdP.
// Если ни одна группа не совпала - Anonymous.
func FromGroups(groups []string, m GroupMapping) Role {
	adminSet := toSet(m.AdminGroups)
	companySet := toSet(m.CompanyGroups)
	candidateSet := toSet(m.CandidateGroups)

	var matched []Role
	for _, g := range groups {
		// Keycloak может отдавать группы как путь: /jobboard-admins
		g = strings.TrimPrefix(g, "/")
		if adminSet[g] {
			matched = append(matched, Admin)
		}
		if companySet[g] {
			matched = append(matched, Company)
		}
		if candidateSet[g] {
			matched = append(matched, Candidate)
		}
	}
	return Highest(matched...)
}

// FromClaims определяет роль по группам, а если группы ничего не дали -
// по realm roles (значения вида "company", "candidate", "admin").
func FromClaims(groups, realmRoles []string, m GroupMapping) Role {
	if r := FromGroups(groups, m); r != Anonymous {
		return r
	}
	parsed := make([]Role, 0, len(realmRoles))
	for _, rr := range realmRoles {
		parsed = append(parsed, Parse(rr))
	}
	return Highest(parsed...)
}

// OneOf сообщает, входит ли r в перечисленный набор.
func (r Role) OneOf(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
