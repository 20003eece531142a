package console

import (
	"net/http"
	"net/url"

	"github.com/voltline/j1939-console/internal/navigation"
)

// MenuNode is a rendered menu entry. Link is the page href for terminal
// entries and the toggled-state URL for expandable ones, so the menu
// works without scripts.
type MenuNode struct {
	ID         string
	Target     string
	Label      string
	Link       string
	Expandable bool
	Expanded   bool
	Children   []MenuNode
}

// MenuView is one layout of the menu.
type MenuView struct {
	Sections []MenuNode
	Panel    []MenuNode
}

// Chrome is the page frame shared by every console page.
type Chrome struct {
	Title      string
	Lang       string
	Dir        string
	MenuID     string
	State      navigation.State
	Desktop    MenuView
	Mobile     MenuView
	SwitchLang string
	SwitchLink string
}

// menu levels, matching the transition each level toggles
const (
	levelSection = iota
	levelItem
	levelLeaf
)

func (h *Handler) chrome(r *http.Request, title string) Chrome {
	m := h.nav.Replay(r)
	defer m.Close()
	lang := h.nav.Lang(r)
	state := m.State()

	c := Chrome{
		Title:   title,
		Lang:    lang,
		Dir:     "ltr",
		MenuID:  m.ID(),
		State:   state,
		Desktop: h.menuView(r, m.Render(lang, navigation.SurfaceDesktop)),
		Mobile:  h.menuView(r, m.Render(lang, navigation.SurfaceMobile)),
	}
	if lang == navigation.LangArabic {
		c.Dir = "rtl"
	}

	c.SwitchLang = navigation.LangArabic
	if lang == navigation.LangArabic {
		c.SwitchLang = navigation.LangEnglish
	}
	q := r.URL.Query()
	q.Set("lang", c.SwitchLang)
	c.SwitchLink = r.URL.Path + "?" + q.Encode()
	return c
}

func (h *Handler) menuView(r *http.Request, v navigation.View) MenuView {
	return MenuView{
		Sections: h.menuNodes(r, v.State, v.Sections, levelSection),
		Panel:    h.menuNodes(r, v.State, v.Panel, levelItem),
	}
}

func (h *Handler) menuNodes(r *http.Request, state navigation.State, nodes []navigation.NodeView, level int) []MenuNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]MenuNode, 0, len(nodes))
	for _, n := range nodes {
		link := n.Href
		if n.Expandable {
			link = h.toggleLink(r, state, level, n.ID)
		}
		out = append(out, MenuNode{
			ID:         n.ID,
			Target:     n.Target,
			Label:      n.Label,
			Link:       link,
			Expandable: n.Expandable,
			Expanded:   n.Expanded,
			Children:   h.menuNodes(r, state, n.Children, min(level+1, levelLeaf)),
		})
	}
	return out
}

// toggleLink returns the current page URL with the menu state that
// toggling id would produce.
func (h *Handler) toggleLink(r *http.Request, state navigation.State, level int, id string) string {
	m := replayState(h.nav.Tree(), state)
	switch level {
	case levelSection:
		m.ToggleSection(id)
	case levelItem:
		m.ToggleItem(id)
	default:
		m.ToggleLeafGroup(id)
	}
	return r.URL.Path + stateQuery(r.URL.Query(), m.State())
}

func replayState(tree *navigation.Tree, state navigation.State) *navigation.Menu {
	m := navigation.NewMenu(tree)
	if state.Section != "" {
		m.OpenSection(state.Section)
	}
	if state.Item != "" {
		m.ToggleItem(state.Item)
	}
	if state.LeafGroup != "" {
		m.ToggleLeafGroup(state.LeafGroup)
	}
	return m
}

// stateQuery re-encodes q with the menu parameters replaced by state.
func stateQuery(q url.Values, state navigation.State) string {
	out := url.Values{}
	for k, v := range q {
		out[k] = v
	}
	for key, val := range map[string]string{
		"section": state.Section,
		"item":    state.Item,
		"group":   state.LeafGroup,
	} {
		if val == "" {
			out.Del(key)
		} else {
			out.Set(key, val)
		}
	}
	if len(out) == 0 {
		return ""
	}
	return "?" + out.Encode()
}
