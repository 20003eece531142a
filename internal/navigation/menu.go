package navigation

import "strings"

// DefaultMenuID is the element ID of a menu created without WithID.
const DefaultMenuID = "nav"

// State is the expansion state of one menu instance. Empty means closed.
type State struct {
	Section   string `json:"open_section"`
	Item      string `json:"open_item"`
	LeafGroup string `json:"open_leaf_group"`
}

// Navigator receives the href of a selected terminal node.
type Navigator interface {
	Navigate(href string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(href string)

// Navigate calls f(href).
func (f NavigatorFunc) Navigate(href string) { f(href) }

// Option configures a Menu.
type Option func(*Menu)

// WithID sets the element ID that scopes the menu's region.
func WithID(id string) Option {
	return func(m *Menu) { m.id = id }
}

// WithPointerSource attaches the page-wide pointer feed used to detect
// clicks outside the menu.
func WithPointerSource(src PointerSource) Option {
	return func(m *Menu) { m.source = src }
}

// WithNavigator sets where terminal selections are routed.
func WithNavigator(n Navigator) Option {
	return func(m *Menu) { m.navigator = n }
}

// Menu is the disclosure state machine for a single rendered menu. It is
// not safe for concurrent use; the owning view drives it from one
// goroutine.
type Menu struct {
	id        string
	tree      *Tree
	state     State
	source    PointerSource
	navigator Navigator
	release   func()
	closed    bool
}

// NewMenu returns a collapsed menu over tree.
func NewMenu(tree *Tree, opts ...Option) *Menu {
	m := &Menu{id: DefaultMenuID, tree: tree}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID returns the menu's element ID.
func (m *Menu) ID() string { return m.id }

// Tree returns the menu's tree.
func (m *Menu) Tree() *Tree { return m.tree }

// State returns a copy of the current expansion state.
func (m *Menu) State() State { return m.state }

// IsOpen reports whether any section is expanded.
func (m *Menu) IsOpen() bool { return m.state.Section != "" }

// Listening reports whether the outside-pointer listener is subscribed.
func (m *Menu) Listening() bool { return m.release != nil }

// OpenSection expands a section without toggling, as a hover does.
// Switching sections drops the item and leaf group of the previous one.
func (m *Menu) OpenSection(id string) {
	if _, ok := m.tree.Section(id); !ok || m.state.Section == id {
		return
	}
	m.state = State{Section: id}
	m.syncListener()
}

// ToggleSection closes the section if it is open, otherwise opens it.
func (m *Menu) ToggleSection(id string) {
	if _, ok := m.tree.Section(id); !ok {
		return
	}
	if m.state.Section == id {
		m.state = State{}
	} else {
		m.state = State{Section: id}
	}
	m.syncListener()
}

// ToggleItem toggles an expandable item of the open section.
func (m *Menu) ToggleItem(id string) {
	sec, ok := m.tree.Section(m.state.Section)
	if !ok {
		return
	}
	item, ok := sec.Item(id)
	if !ok || !item.Expandable() {
		return
	}
	if m.state.Item == id {
		m.state.Item = ""
	} else {
		m.state.Item = id
	}
	m.state.LeafGroup = ""
}

// ToggleLeafGroup toggles a leaf group of the open item.
func (m *Menu) ToggleLeafGroup(id string) {
	sec, ok := m.tree.Section(m.state.Section)
	if !ok {
		return
	}
	item, ok := sec.Item(m.state.Item)
	if !ok {
		return
	}
	leaf, ok := item.Leaf(id)
	if !ok || !leaf.IsGroup() {
		return
	}
	if m.state.LeafGroup == id {
		m.state.LeafGroup = ""
	} else {
		m.state.LeafGroup = id
	}
}

// CollapseAll closes every level.
func (m *Menu) CollapseAll() {
	m.state = State{}
	m.syncListener()
}

// Select follows the terminal node id: the menu collapses and the href is
// handed to the navigator. ok is false when id is not a terminal node.
func (m *Menu) Select(id string) (href string, ok bool) {
	href, ok = m.tree.Terminal(id)
	if !ok {
		return "", false
	}
	m.CollapseAll()
	if m.navigator != nil {
		m.navigator.Navigate(href)
	}
	return href, true
}

// Contains reports whether target lies inside the menu's region.
func (m *Menu) Contains(target string) bool {
	return target == m.id || strings.HasPrefix(target, m.id+"/")
}

// Target returns the element path of node id within this menu.
func (m *Menu) Target(id string) string {
	return m.id + "/" + id
}

// HandlePointer collapses the menu when a pointer lands outside it.
func (m *Menu) HandlePointer(ev PointerEvent) {
	if !m.IsOpen() || m.Contains(ev.Target) {
		return
	}
	m.CollapseAll()
}

// Close releases the outside-pointer listener. The menu keeps working
// afterwards but never subscribes again.
func (m *Menu) Close() {
	m.closed = true
	m.syncListener()
}

// syncListener holds a pointer subscription exactly while the menu is open
// and not closed.
func (m *Menu) syncListener() {
	want := m.IsOpen() && !m.closed && m.source != nil
	switch {
	case want && m.release == nil:
		m.release = m.source.Subscribe(m.HandlePointer)
	case !want && m.release != nil:
		release := m.release
		m.release = nil
		release()
	}
}
