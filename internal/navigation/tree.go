package navigation

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_tree.yaml
var defaultTreeYAML []byte

// DefaultTree returns the built-in site menu.
func DefaultTree() *Tree {
	t, err := ParseTree(defaultTreeYAML)
	if err != nil {
		panic(fmt.Sprintf("navigation: embedded tree: %v", err))
	}
	return t
}

// LoadTree reads a menu tree from a YAML file. An empty path yields the
// built-in tree.
func LoadTree(path string) (*Tree, error) {
	if path == "" {
		return DefaultTree(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading navigation tree %s: %w", path, err)
	}
	t, err := ParseTree(data)
	if err != nil {
		return nil, fmt.Errorf("navigation tree %s: %w", path, err)
	}
	return t, nil
}

// ParseTree decodes and validates a YAML menu tree. Missing IDs are derived
// from the English label, prefixed with the parent's ID.
func ParseTree(data []byte) (*Tree, error) {
	var t Tree
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := t.normalize(); err != nil {
		return nil, err
	}
	return &t, nil
}

// normalize fills in IDs and checks the structural rules: href XOR
// children at every level, leaf groups only one level deep, unique IDs.
func (t *Tree) normalize() error {
	seen := make(map[string]bool)
	claim := func(id, kind string) error {
		if id == "" {
			return fmt.Errorf("%s has neither id nor English name", kind)
		}
		if strings.ContainsAny(id, "/ ") {
			return fmt.Errorf("%s id %q must not contain '/' or spaces", kind, id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate id %q", id)
		}
		seen[id] = true
		return nil
	}

	if len(t.Sections) == 0 {
		return fmt.Errorf("tree has no sections")
	}

	for si := range t.Sections {
		sec := &t.Sections[si]
		sec.ID = deriveID(sec.ID, "", sec.Name)
		if sec.ID == "" {
			return fmt.Errorf("section %d has neither id nor English name", si)
		}
		if err := claim(sec.ID, "section"); err != nil {
			return err
		}

		for ii := range sec.Children {
			item := &sec.Children[ii]
			item.ID = deriveID(item.ID, sec.ID, item.Name)
			if err := claim(item.ID, "item"); err != nil {
				return err
			}
			if err := checkLink(item.ID, item.Href, len(item.Children)); err != nil {
				return err
			}

			for li := range item.Children {
				leaf := &item.Children[li]
				leaf.ID = deriveID(leaf.ID, item.ID, leaf.Name)
				if err := claim(leaf.ID, "leaf"); err != nil {
					return err
				}
				if err := checkLink(leaf.ID, leaf.Href, len(leaf.Children)); err != nil {
					return err
				}

				for ci := range leaf.Children {
					child := &leaf.Children[ci]
					child.ID = deriveID(child.ID, leaf.ID, child.Name)
					if err := claim(child.ID, "leaf"); err != nil {
						return err
					}
					if len(child.Children) > 0 {
						return fmt.Errorf("leaf %q: leaf groups cannot nest", child.ID)
					}
					if child.Href == "" {
						return fmt.Errorf("leaf %q needs an href", child.ID)
					}
				}
			}
		}
	}
	return nil
}

func checkLink(id, href string, children int) error {
	switch {
	case href != "" && children > 0:
		return fmt.Errorf("%q has both href and children", id)
	case href == "" && children == 0:
		return fmt.Errorf("%q needs an href or children", id)
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func deriveID(id, parent string, name Label) string {
	if id != "" {
		return id
	}
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name.En), "-"), "-")
	if slug == "" {
		return ""
	}
	if parent == "" {
		return slug
	}
	return parent + "-" + slug
}
