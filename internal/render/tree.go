// Package render turns a materialised cache into user-facing output: the
// ASCII tree, its colored variant and the JSON tree. Children are sorted at
// render time, which by the traversal invariant matches the persisted order.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ConnerAdamsMaine/PTree/internal/cache"
)

// Options control tree output.
type Options struct {
	// MaxDepth stops recursion below the given depth; 0 means unlimited.
	MaxDepth int

	// ShowHidden suffixes hidden directories with " [H]".
	ShowHidden bool

	// Color renders branches and names with terminal styles.
	Color bool
}

var (
	rootStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	branchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// treeRenderer walks a materialised entry set.
type treeRenderer struct {
	entries map[string]*cache.Entry
	opts    Options
	b       strings.Builder
}

// Tree renders the cache as an ASCII (or colored) tree rooted at the
// cache's root path.
func Tree(store *cache.Store, opts Options) (string, error) {
	entries, err := store.GetAll()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "(empty)\n", nil
	}

	r := &treeRenderer{entries: entries, opts: opts}
	root := store.Root()
	if opts.Color {
		r.b.WriteString(rootStyle.Render(root))
	} else {
		r.b.WriteString(root)
	}
	r.b.WriteString("\n")
	r.walk(root, "", 0)
	return r.b.String(), nil
}

func (r *treeRenderer) walk(path, prefix string, depth int) {
	if r.opts.MaxDepth > 0 && depth >= r.opts.MaxDepth {
		return
	}

	entry, ok := r.entries[path]
	if !ok {
		return
	}

	children := append([]string(nil), entry.Children...)
	sort.Strings(children)

	for i, name := range children {
		isLastChild := i == len(children)-1
		branch, marker := "├── ", "│   "
		if isLastChild {
			branch, marker = "└── ", "    "
		}

		childPath := joinChild(path, name)
		display := r.displayName(name, childPath)

		if r.opts.Color {
			r.b.WriteString(prefix + branchStyle.Render(branch) + nameStyle.Render(display) + "\n")
		} else {
			r.b.WriteString(prefix + branch + display + "\n")
		}
		r.walk(childPath, prefix+marker, depth+1)
	}
}

// displayName decorates a child name with its symlink target and, when
// requested, the hidden marker.
func (r *treeRenderer) displayName(name, path string) string {
	entry, ok := r.entries[path]
	if !ok {
		return name
	}
	if entry.SymlinkTarget != "" {
		return fmt.Sprintf("%s (→ %s)", name, entry.SymlinkTarget)
	}
	if r.opts.ShowHidden && entry.IsHidden {
		return name + " [H]"
	}
	return name
}
