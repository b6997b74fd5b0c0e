// Package authz resuelve qué roles tienen cada capacidad del libro de inventario.
package authz

import (
	"strings"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// Policy mapa capacidad → roles autorizados.
type Policy struct {
	grants map[entity.Capability]map[string]bool
}

// DefaultGrants asignación por defecto: el verificador cuenta y consulta; administración y gerencia pueden todo.
func DefaultGrants() map[entity.Capability][]string {
	all := []string{entity.RoleAdministrator, entity.RoleManagement}
	g := make(map[entity.Capability][]string, len(entity.AllCapabilities))
	for _, c := range entity.AllCapabilities {
		g[c] = append([]string(nil), all...)
	}
	g[entity.CapCountInventory] = append(g[entity.CapCountInventory], entity.RoleVerifier)
	g[entity.CapViewReports] = append(g[entity.CapViewReports], entity.RoleVerifier)
	return g
}

// NewPolicy construye la política desde DefaultGrants aplicando overrides
// (capacidad → lista de roles separada por comas; reemplaza la asignación por defecto).
func NewPolicy(overrides map[string]string) *Policy {
	grants := DefaultGrants()
	for capName, roles := range overrides {
		c := entity.Capability(strings.ToLower(strings.TrimSpace(capName)))
		if _, known := grants[c]; !known {
			continue
		}
		var list []string
		for _, r := range strings.Split(roles, ",") {
			if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
				list = append(list, r)
			}
		}
		grants[c] = list
	}

	p := &Policy{grants: make(map[entity.Capability]map[string]bool, len(grants))}
	for c, roles := range grants {
		set := make(map[string]bool, len(roles))
		for _, r := range roles {
			set[r] = true
		}
		p.grants[c] = set
	}
	return p
}

// Allows indica si el rol tiene la capacidad.
func (p *Policy) Allows(role string, c entity.Capability) bool {
	return p.grants[c][strings.ToLower(role)]
}

// Require devuelve domain.ErrForbidden si el actor no tiene la capacidad.
func (p *Policy) Require(actor entity.Actor, c entity.Capability) error {
	if actor.ID == "" {
		return domain.ErrUnauthorized
	}
	if !p.Allows(actor.Role, c) {
		return domain.ErrForbidden
	}
	return nil
}
