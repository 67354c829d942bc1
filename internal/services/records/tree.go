package records

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Row is one stored leaf: a full path and its JSON encoded value.
type Row struct {
	Path  string
	Value []byte
}

// Flatten converts value into leaf rows under path. Nested maps become
// deeper paths; every other value is stored as one JSON leaf. A nil value
// or an empty map produces no rows, which deletes the subtree on Set.
func Flatten(path string, value any) ([]Row, error) {
	var rows []Row
	if err := flatten(path, value, &rows); err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	return rows, nil
}

func flatten(path string, value any, rows *[]Row) error {
	switch typed := value.(type) {
	case nil:
		return nil
	case map[string]any:
		for key, child := range typed {
			if strings.TrimSpace(key) == "" || strings.Contains(key, "/") {
				return fmt.Errorf("%w: key %q under %q", ErrInvalidPath, key, path)
			}
			if err := flatten(path+"/"+key, child, rows); err != nil {
				return err
			}
		}
		return nil
	default:
		payload, err := json.Marshal(typed)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		*rows = append(*rows, Row{Path: path, Value: payload})
		return nil
	}
}

// Assemble rebuilds the subtree at path from leaf rows. Rows outside the
// subtree are ignored. It returns ErrNotFound when nothing lives at path.
func Assemble(path string, rows []Row) (any, error) {
	prefix := path + "/"
	var root map[string]any
	for _, row := range rows {
		var value any
		if err := json.Unmarshal(row.Value, &value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", row.Path, err)
		}
		if row.Path == path {
			return value, nil
		}
		rest, ok := strings.CutPrefix(row.Path, prefix)
		if !ok {
			continue
		}
		if root == nil {
			root = map[string]any{}
		}
		insert(root, strings.Split(rest, "/"), value)
	}
	if root == nil {
		return nil, ErrNotFound
	}
	return root, nil
}

func insert(node map[string]any, segments []string, value any) {
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[segment] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// SubtreeBounds returns the half-open key range [lower, upper) that holds
// every descendant of path in byte order.
func SubtreeBounds(path string) (lower, upper string) {
	return path + "/", path + "0"
}
