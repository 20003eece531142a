package navigation

// Supported label languages.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
)

// Label is a localized string pair.
type Label struct {
	En string `yaml:"en" json:"en"`
	Ar string `yaml:"ar" json:"ar"`
}

// Text returns the label in lang, falling back to English.
func (l Label) Text(lang string) string {
	if lang == LangArabic && l.Ar != "" {
		return l.Ar
	}
	return l.En
}

// Leaf is a terminal link. A leaf with Children instead of Href is a leaf
// group, the third expansion level; its children are always terminal.
type Leaf struct {
	ID       string `yaml:"id" json:"id"`
	Name     Label  `yaml:"name" json:"name"`
	Href     string `yaml:"href,omitempty" json:"href,omitempty"`
	Children []Leaf `yaml:"children,omitempty" json:"children,omitempty"`
}

// IsGroup reports whether the leaf expands instead of navigating.
func (l *Leaf) IsGroup() bool { return len(l.Children) > 0 }

// Item is a sub-section entry. It either links somewhere (Href) or expands
// into leaves (Children), never both.
type Item struct {
	ID       string `yaml:"id" json:"id"`
	Name     Label  `yaml:"name" json:"name"`
	Href     string `yaml:"href,omitempty" json:"href,omitempty"`
	Children []Leaf `yaml:"children,omitempty" json:"children,omitempty"`
}

// Expandable reports whether the item has leaves to disclose.
func (i *Item) Expandable() bool { return len(i.Children) > 0 }

// Leaf returns the direct child leaf with the given ID.
func (i *Item) Leaf(id string) (*Leaf, bool) {
	for k := range i.Children {
		if i.Children[k].ID == id {
			return &i.Children[k], true
		}
	}
	return nil, false
}

// Section is a top-level menu entry.
type Section struct {
	ID       string `yaml:"id" json:"id"`
	Name     Label  `yaml:"name" json:"name"`
	Children []Item `yaml:"children" json:"children"`
}

// Item returns the direct child item with the given ID.
func (s *Section) Item(id string) (*Item, bool) {
	for k := range s.Children {
		if s.Children[k].ID == id {
			return &s.Children[k], true
		}
	}
	return nil, false
}

// Tree is the static, language-pair-labeled menu served to the site.
type Tree struct {
	Sections []Section `yaml:"sections" json:"sections"`
}

// Section returns the section with the given ID.
func (t *Tree) Section(id string) (*Section, bool) {
	for k := range t.Sections {
		if t.Sections[k].ID == id {
			return &t.Sections[k], true
		}
	}
	return nil, false
}

// Terminal returns the href of the terminal node (item or leaf) with the
// given ID.
func (t *Tree) Terminal(id string) (string, bool) {
	for si := range t.Sections {
		for ii := range t.Sections[si].Children {
			item := &t.Sections[si].Children[ii]
			if item.ID == id && !item.Expandable() {
				return item.Href, true
			}
			for li := range item.Children {
				leaf := &item.Children[li]
				if leaf.ID == id && !leaf.IsGroup() {
					return leaf.Href, true
				}
				for ci := range leaf.Children {
					if leaf.Children[ci].ID == id {
						return leaf.Children[ci].Href, true
					}
				}
			}
		}
	}
	return "", false
}
