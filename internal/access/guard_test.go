package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowed_RoleGating(t *testing.T) {
	assert.False(t, IsAllowed(RoleAnalyst, "/organization"))
	assert.True(t, IsAllowed(RoleSuperAdmin, "/organization"))
	assert.False(t, IsAllowed("unknown-role", "/organization"), "unknown roles fail closed")
	assert.False(t, IsAllowed("", "/organization"))
}

func TestIsAllowed_Table(t *testing.T) {
	tests := []struct {
		role Role
		path string
		want bool
	}{
		{RoleSuperAdmin, PathUsers, true},
		{RoleSuperAdmin, PathPlantList, true},
		{RoleAdmin, PathOrganizations, false},
		{RoleAdmin, PathPlants, false},
		{RoleAdmin, PathPlantList, false},
		{RoleAdmin, PathUsers, false},
		{RoleAdmin, PathPlantEvents, true},
		{RoleAnalyst, PathPlantEvents, true},
		{"intruder", PathPlantEvents, true},
		{RoleAnalyst, PathDashboard, true},
		{RoleAnalyst, PathConsumption, true},
		{RoleAnalyst, PathMarket, true},
		{RoleAnalyst, PathGeneration, true},
		{RoleAnalyst, "/users/", false},
		{RoleAnalyst, "plant/list", false},
		{RoleAnalyst, "/nowhere", false},
		{RoleSuperAdmin, "/nowhere", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.role, tt.path))
		})
	}
}

func TestDecideDefaultView(t *testing.T) {
	assert.Equal(t, ViewCreate, DecideDefaultView(RoleSuperAdmin))
	assert.Equal(t, ViewActive, DecideDefaultView(RoleAdmin))
	assert.Equal(t, ViewList, DecideDefaultView(RoleAnalyst))
	assert.Equal(t, ViewList, DecideDefaultView("guest"))
}

func TestAllowedViews(t *testing.T) {
	assert.Equal(t, []ViewMode{ViewList}, AllowedViews(RoleAnalyst))
	assert.True(t, ViewAllowed(RoleAdmin, ViewActive))
	assert.False(t, ViewAllowed(RoleAnalyst, ViewActive))
	assert.False(t, ViewAllowed("guest", ViewCreate))

	views := AllowedViews(RoleSuperAdmin)
	views[0] = "tampered"
	assert.Equal(t, ViewCreate, AllowedViews(RoleSuperAdmin)[0])
}

func TestCan(t *testing.T) {
	for _, a := range []Action{ActionManageOrganizations, ActionManagePlants, ActionManageUsers, ActionCreateEvent, ActionFinishEvent} {
		assert.True(t, Can(RoleSuperAdmin, a), a)
		assert.False(t, Can(RoleAnalyst, a), a)
		assert.False(t, Can("unknown-role", a), a)
	}
	assert.True(t, Can(RoleAdmin, ActionCreateEvent))
	assert.True(t, Can(RoleAdmin, ActionFinishEvent))
	assert.False(t, Can(RoleAdmin, ActionManagePlants))
}

func TestResolve(t *testing.T) {
	assert.Equal(t, RoleAdmin, Resolve(RoleAdmin))
	assert.Equal(t, RoleAnalyst, Resolve("Super_Admin"))
}

func TestMenu(t *testing.T) {
	items := Menu(RoleAnalyst)
	require.Len(t, items, 4)

	asset := items[1]
	require.Equal(t, "asset", asset.ID)
	assert.True(t, asset.Allowed, "section stays open because the event log is allowed")

	allowed := map[string]bool{}
	for _, c := range asset.Children {
		allowed[c.Path] = c.Allowed
	}
	assert.Equal(t, map[string]bool{
		PathOrganizations: false,
		PathPlants:        false,
		PathPlantEvents:   true,
		PathUsers:         false,
	}, allowed)

	for _, c := range Menu(RoleSuperAdmin)[1].Children {
		assert.True(t, c.Allowed, c.Path)
	}
}
