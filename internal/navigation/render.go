package navigation

// Surface selects how a menu is laid out.
type Surface string

const (
	// SurfaceDesktop is a bar of sections with a panel for the open one.
	SurfaceDesktop Surface = "desktop"
	// SurfaceMobile is an accordion nesting children under expanded nodes.
	SurfaceMobile Surface = "mobile"
)

// ParseSurface maps a query value to a Surface, defaulting to desktop.
func ParseSurface(s string) Surface {
	if Surface(s) == SurfaceMobile {
		return SurfaceMobile
	}
	return SurfaceDesktop
}

// NodeView is one rendered menu node.
type NodeView struct {
	ID         string     `json:"id"`
	Target     string     `json:"target,omitempty"`
	Label      string     `json:"label"`
	Href       string     `json:"href,omitempty"`
	Expandable bool       `json:"expandable"`
	Expanded   bool       `json:"expanded"`
	Children   []NodeView `json:"children,omitempty"`
}

// View is a rendered menu for one surface.
type View struct {
	Surface  Surface    `json:"surface"`
	Lang     string     `json:"lang"`
	Open     bool       `json:"open"`
	State    State      `json:"state"`
	Sections []NodeView `json:"sections"`
	Panel    []NodeView `json:"panel,omitempty"`
}

// Render lays out the menu's current state for surface.
func (m *Menu) Render(lang string, surface Surface) View {
	return Render(m.tree, m.id, m.state, lang, surface)
}

// Render lays out tree under state. The desktop bar never nests; its
// panel holds the open section's items. The mobile accordion nests the
// same items under the expanded section, so both surfaces agree.
func Render(tree *Tree, menuID string, state State, lang string, surface Surface) View {
	if lang != LangArabic {
		lang = LangEnglish
	}
	v := View{
		Surface:  surface,
		Lang:     lang,
		Open:     state.Section != "",
		State:    state,
		Sections: make([]NodeView, 0, len(tree.Sections)),
	}

	for si := range tree.Sections {
		sec := &tree.Sections[si]
		node := NodeView{
			ID:         sec.ID,
			Target:     target(menuID, sec.ID),
			Label:      sec.Name.Text(lang),
			Expandable: true,
			Expanded:   sec.ID == state.Section,
		}
		if node.Expanded {
			items := renderItems(sec.Children, menuID, state, lang)
			if surface == SurfaceMobile {
				node.Children = items
			} else {
				v.Panel = items
			}
		}
		v.Sections = append(v.Sections, node)
	}
	return v
}

func renderItems(items []Item, menuID string, state State, lang string) []NodeView {
	out := make([]NodeView, 0, len(items))
	for ii := range items {
		item := &items[ii]
		node := NodeView{
			ID:         item.ID,
			Target:     target(menuID, item.ID),
			Label:      item.Name.Text(lang),
			Href:       item.Href,
			Expandable: item.Expandable(),
			Expanded:   item.Expandable() && item.ID == state.Item,
		}
		if node.Expanded {
			node.Children = renderLeaves(item.Children, menuID, state, lang)
		}
		out = append(out, node)
	}
	return out
}

func renderLeaves(leaves []Leaf, menuID string, state State, lang string) []NodeView {
	out := make([]NodeView, 0, len(leaves))
	for li := range leaves {
		leaf := &leaves[li]
		node := NodeView{
			ID:         leaf.ID,
			Target:     target(menuID, leaf.ID),
			Label:      leaf.Name.Text(lang),
			Href:       leaf.Href,
			Expandable: leaf.IsGroup(),
			Expanded:   leaf.IsGroup() && leaf.ID == state.LeafGroup,
		}
		if node.Expanded {
			node.Children = renderLeaves(leaf.Children, menuID, state, lang)
		}
		out = append(out, node)
	}
	return out
}

// Localize returns the whole tree in lang with every level present and
// nothing expanded.
func Localize(tree *Tree, lang string) []NodeView {
	out := make([]NodeView, 0, len(tree.Sections))
	for si := range tree.Sections {
		sec := &tree.Sections[si]
		items := make([]NodeView, 0, len(sec.Children))
		for ii := range sec.Children {
			item := &sec.Children[ii]
			items = append(items, NodeView{
				ID:         item.ID,
				Label:      item.Name.Text(lang),
				Href:       item.Href,
				Expandable: item.Expandable(),
				Children:   localizeLeaves(item.Children, lang),
			})
		}
		out = append(out, NodeView{
			ID:         sec.ID,
			Label:      sec.Name.Text(lang),
			Expandable: true,
			Children:   items,
		})
	}
	return out
}

func localizeLeaves(leaves []Leaf, lang string) []NodeView {
	if len(leaves) == 0 {
		return nil
	}
	out := make([]NodeView, 0, len(leaves))
	for li := range leaves {
		leaf := &leaves[li]
		out = append(out, NodeView{
			ID:         leaf.ID,
			Label:      leaf.Name.Text(lang),
			Href:       leaf.Href,
			Expandable: leaf.IsGroup(),
			Children:   localizeLeaves(leaf.Children, lang),
		})
	}
	return out
}

func target(menuID, id string) string {
	if menuID == "" {
		return ""
	}
	return menuID + "/" + id
}
