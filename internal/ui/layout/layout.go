// Пакет layout: оболочка страниц jobboard: документ, шапка с навигацией
// по роли и область контента. Чистая композиция: без запросов данных
// и без изменения состояния.
package layout

//go:generate templ generate

import (
	"github.com/bigkaa/jobboard/internal/domain/role"
	"github.com/bigkaa/jobboard/internal/ui/auth"
)

// NavItem: пункт навигации.
type NavItem struct {
	Href     string
	LabelKey string
}

var (
	publicNav = []NavItem{
		{Href: "/", LabelKey: "nav.home"},
		{Href: "/jobs", LabelKey: "nav.jobs"},
	}
	candidateNav = append(clone(publicNav), NavItem{Href: "/candidate", LabelKey: "nav.candidate"})
	companyNav   = append(clone(publicNav), NavItem{Href: "/company", LabelKey: "nav.company"})
	adminNav     = append(clone(publicNav), NavItem{Href: "/admin", LabelKey: "nav.admin"})
)

// Navigation возвращает пункты навигации роли.
// Anonymous и нераспознанные значения получают публичную навигацию.
func Navigation(r role.Role) []NavItem {
	switch r {
	case role.Candidate:
		return clone(candidateNav)
	case role.Company:
		return clone(companyNav)
	case role.Admin:
		return clone(adminNav)
	default:
		return clone(publicNav)
	}
}

// variant: вариант оболочки; для неизвестной роли - anonymous.
func variant(r role.Role) string {
	if !r.Valid() {
		return role.Anonymous.String()
	}
	return r.String()
}

// displayName: имя пользователя в шапке; без username - его ID.
func displayName(identity *auth.Identity) string {
	if identity.Username != "" {
		return identity.Username
	}
	return identity.ID
}

func clone(items []NavItem) []NavItem {
	return append([]NavItem(nil), items...)
}
