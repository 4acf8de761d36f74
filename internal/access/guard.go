// Package access holds the role policy tables used to gate navigation and
// actions. Every decision is a pure function of the role passed in; nothing
// is read from ambient session state.
//
// The navigation guard is a presentation convenience. Handlers that mutate
// data enforce the same action table themselves.
package access

import (
	"path"
	"strings"
)

// Role is the role claim carried by an authenticated user.
type Role string

const (
	// RoleSuperAdmin manages every organization, plant and user.
	RoleSuperAdmin Role = "super_admin"
	// RoleAdmin operates the plants of its own organization.
	RoleAdmin Role = "admin"
	// RoleAnalyst is read-only. Unknown roles are treated as analysts.
	RoleAnalyst Role = "analyst"
)

// ViewMode is the initial state of a page that has role-dependent views.
type ViewMode string

const (
	ViewCreate ViewMode = "create"
	ViewActive ViewMode = "active"
	ViewList   ViewMode = "list"
)

// Action is a mutating or privileged operation.
type Action string

const (
	ActionManageOrganizations Action = "organizations.manage"
	ActionManagePlants        Action = "plants.manage"
	ActionManageUsers         Action = "users.manage"
	ActionCreateEvent         Action = "events.create"
	ActionFinishEvent         Action = "events.finish"
)

// Navigation routes.
const (
	PathDashboard     = "/dashboard"
	PathOrganizations = "/organization"
	PathPlants        = "/plant"
	PathPlantList     = "/plant/list"
	PathPlantEvents   = "/plant-events"
	PathUsers         = "/users"
	PathGeneration    = "/generation"
	PathConsumption   = "/consumption"
	PathMarket        = "/market"
)

var knownPaths = map[string]bool{
	PathDashboard:     true,
	PathOrganizations: true,
	PathPlants:        true,
	PathPlantList:     true,
	PathPlantEvents:   true,
	PathUsers:         true,
	PathGeneration:    true,
	PathConsumption:   true,
	PathMarket:        true,
}

// restrictedPaths are denied to every role except super_admin, including
// their sub-paths. The event log is open to every role.
var restrictedPaths = []string{PathOrganizations, PathPlants, PathUsers}

type profile struct {
	allPaths    bool
	defaultView ViewMode
	views       []ViewMode
	actions     map[Action]bool
}

var profiles = map[Role]profile{
	RoleSuperAdmin: {
		allPaths:    true,
		defaultView: ViewCreate,
		views:       []ViewMode{ViewCreate, ViewActive, ViewList},
		actions: map[Action]bool{
			ActionManageOrganizations: true,
			ActionManagePlants:        true,
			ActionManageUsers:         true,
			ActionCreateEvent:         true,
			ActionFinishEvent:         true,
		},
	},
	RoleAdmin: {
		defaultView: ViewActive,
		views:       []ViewMode{ViewCreate, ViewActive, ViewList},
		actions: map[Action]bool{
			ActionCreateEvent: true,
			ActionFinishEvent: true,
		},
	},
	RoleAnalyst: {
		defaultView: ViewList,
		views:       []ViewMode{ViewList},
		actions:     map[Action]bool{},
	},
}

// Resolve maps any role string onto a known role, falling back to the
// least privileged one.
func Resolve(role Role) Role {
	if _, ok := profiles[role]; ok {
		return role
	}
	return RoleAnalyst
}

func profileOf(role Role) profile {
	return profiles[Resolve(role)]
}

// IsAllowed reports whether role may navigate to p.
func IsAllowed(role Role, p string) bool {
	p = cleanPath(p)
	if !knownPaths[p] {
		return false
	}
	if profileOf(role).allPaths {
		return true
	}
	for _, r := range restrictedPaths {
		if p == r || strings.HasPrefix(p, r+"/") {
			return false
		}
	}
	return true
}

// DecideDefaultView returns the view a page with several modes opens in.
func DecideDefaultView(role Role) ViewMode {
	return profileOf(role).defaultView
}

// AllowedViews lists the view modes role may switch between.
func AllowedViews(role Role) []ViewMode {
	views := profileOf(role).views
	out := make([]ViewMode, len(views))
	copy(out, views)
	return out
}

// ViewAllowed reports whether role may open a page in mode.
func ViewAllowed(role Role, mode ViewMode) bool {
	for _, v := range profileOf(role).views {
		if v == mode {
			return true
		}
	}
	return false
}

// Can reports whether role may perform action.
func Can(role Role, action Action) bool {
	return profileOf(role).actions[action]
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
