package access

// MenuItem is one navigation link. Items with children are section headers
// and carry no path of their own.
type MenuItem struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Path     string     `json:"path,omitempty"`
	Allowed  bool       `json:"allowed"`
	Children []MenuItem `json:"children,omitempty"`
}

var menu = []MenuItem{
	{ID: "dashboard", Title: "Dashboard", Path: PathDashboard},
	{ID: "asset", Title: "Asset Management", Children: []MenuItem{
		{ID: "organizations", Title: "Organizations", Path: PathOrganizations},
		{ID: "plants", Title: "Power Plants", Path: PathPlants},
		{ID: "plant-events", Title: "Plant Events", Path: PathPlantEvents},
		{ID: "users", Title: "Users", Path: PathUsers},
	}},
	{ID: "generation", Title: "Generation", Path: PathGeneration},
	{ID: "transparency", Title: "Transparency Platform", Children: []MenuItem{
		{ID: "consumption", Title: "Consumption", Path: PathConsumption},
		{ID: "market", Title: "Market Prices", Path: PathMarket},
	}},
}

// Menu returns the navigation tree with every link gated for role. A section
// is allowed when at least one of its links is.
func Menu(role Role) []MenuItem {
	return gate(menu, role)
}

func gate(items []MenuItem, role Role) []MenuItem {
	out := make([]MenuItem, len(items))
	for i, item := range items {
		out[i] = item
		if len(item.Children) > 0 {
			out[i].Children = gate(item.Children, role)
			out[i].Allowed = false
			for _, c := range out[i].Children {
				if c.Allowed {
					out[i].Allowed = true
					break
				}
			}
			continue
		}
		out[i].Allowed = IsAllowed(role, item.Path)
	}
	return out
}
