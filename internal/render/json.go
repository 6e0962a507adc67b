package render

import (
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/ConnerAdamsMaine/PTree/internal/cache"
)

// jsonNode is one node of the JSON tree. The root node carries no name.
type jsonNode struct {
	Name     string      `json:"name,omitempty"`
	Path     string      `json:"path"`
	Children []*jsonNode `json:"children"`
}

// JSON renders the cache as a nested JSON tree. Children arrays are sorted
// ascending; nodes truncated by MaxDepth keep an empty children array.
func JSON(store *cache.Store, opts Options) (string, error) {
	entries, err := store.GetAll()
	if err != nil {
		return "", err
	}

	root := &jsonNode{Path: store.Root(), Children: []*jsonNode{}}
	if len(entries) > 0 {
		populate(root, entries, store.Root(), 0, opts.MaxDepth)
	}

	out, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func populate(node *jsonNode, entries map[string]*cache.Entry, path string, depth, maxDepth int) {
	if maxDepth > 0 && depth >= maxDepth {
		return
	}

	entry, ok := entries[path]
	if !ok {
		return
	}

	children := append([]string(nil), entry.Children...)
	sort.Strings(children)

	for _, name := range children {
		childPath := joinChild(path, name)
		child := &jsonNode{Name: name, Path: childPath, Children: []*jsonNode{}}
		populate(child, entries, childPath, depth+1, maxDepth)
		node.Children = append(node.Children, child)
	}
}

func joinChild(path, name string) string {
	return filepath.Join(path, name)
}
