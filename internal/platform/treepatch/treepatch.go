// Package treepatch applies RFC 6902 (JSON Patch) operation sequences to
// schema-agnostic document trees (map[string]interface{} / []interface{}).
// Callers convert their typed aggregates to a tree at the boundary, apply a
// batch, and re-parse the result; a batch either applies fully or not at all.
package treepatch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operation is a single JSON Patch operation.
type Operation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	From  string      `json:"from,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

var validOps = map[string]bool{
	"add":     true,
	"remove":  true,
	"replace": true,
	"move":    true,
	"copy":    true,
	"test":    true,
}

// Parse decodes and validates a JSON Patch document.
func Parse(data []byte) ([]Operation, error) {
	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("invalid patch document: %w", err)
	}
	if err := Validate(ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// Validate checks structural well-formedness of an operation batch.
func Validate(ops []Operation) error {
	for i, op := range ops {
		if op.Op == "" {
			return fmt.Errorf("operation %d: missing 'op' field", i)
		}
		if !validOps[op.Op] {
			return fmt.Errorf("operation %d: unknown op %q", i, op.Op)
		}
		if op.Path == "" {
			return fmt.Errorf("operation %d (%s): missing 'path' field", i, op.Op)
		}
		if !strings.HasPrefix(op.Path, "/") {
			return fmt.Errorf("operation %d (%s): path %q must start with '/'", i, op.Op, op.Path)
		}
		if (op.Op == "move" || op.Op == "copy") && op.From == "" {
			return fmt.Errorf("operation %d (%s): missing 'from' field", i, op.Op)
		}
	}
	return nil
}

// Apply runs the batch against a copy of doc and returns the patched tree.
// The input document is never modified; any failing operation aborts the
// whole batch.
func Apply(doc map[string]interface{}, ops []Operation) (map[string]interface{}, error) {
	result := deepCopy(doc)
	for i, op := range ops {
		var err error
		switch op.Op {
		case "add":
			result, err = applyAdd(result, op.Path, op.Value)
		case "remove":
			result, err = applyRemove(result, op.Path)
		case "replace":
			result, err = applyReplace(result, op.Path, op.Value)
		case "move":
			result, err = applyMove(result, op.From, op.Path)
		case "copy":
			result, err = applyCopy(result, op.From, op.Path)
		case "test":
			err = applyTest(result, op.Path, op.Value)
		default:
			err = fmt.Errorf("unknown op %q", op.Op)
		}
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s %s): %w", i, op.Op, op.Path, err)
		}
	}
	return result, nil
}

func applyAdd(doc map[string]interface{}, path string, value interface{}) (map[string]interface{}, error) {
	tokens, err := splitPointer(path)
	if err != nil {
		return nil, err
	}
	out, err := addAt(doc, tokens, deepCopyValue(value))
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("cannot replace document root with non-object value")
	}
	return m, nil
}

func applyRemove(doc map[string]interface{}, path string) (map[string]interface{}, error) {
	tokens, err := splitPointer(path)
	if err != nil {
		return nil, err
	}
	out, err := removeAt(doc, tokens)
	if err != nil {
		return nil, err
	}
	return out.(map[string]interface{}), nil
}

func applyReplace(doc map[string]interface{}, path string, value interface{}) (map[string]interface{}, error) {
	tokens, err := splitPointer(path)
	if err != nil {
		return nil, err
	}
	// replace requires the target to already exist
	if _, err := getAt(doc, tokens); err != nil {
		return nil, err
	}
	out, err := replaceAt(doc, tokens, deepCopyValue(value))
	if err != nil {
		return nil, err
	}
	return out.(map[string]interface{}), nil
}

func applyMove(doc map[string]interface{}, from, path string) (map[string]interface{}, error) {
	fromTokens, err := splitPointer(from)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	value, err := getAt(doc, fromTokens)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	moved := deepCopyValue(value)
	intermediate, err := applyRemove(doc, from)
	if err != nil {
		return nil, fmt.Errorf("remove source: %w", err)
	}
	return applyAdd(intermediate, path, moved)
}

func applyCopy(doc map[string]interface{}, from, path string) (map[string]interface{}, error) {
	fromTokens, err := splitPointer(from)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	value, err := getAt(doc, fromTokens)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	return applyAdd(doc, path, deepCopyValue(value))
}

func applyTest(doc map[string]interface{}, path string, expected interface{}) error {
	tokens, err := splitPointer(path)
	if err != nil {
		return err
	}
	actual, err := getAt(doc, tokens)
	if err != nil {
		return err
	}
	actualJSON, _ := json.Marshal(actual)
	expectedJSON, _ := json.Marshal(expected)
	if string(actualJSON) != string(expectedJSON) {
		return fmt.Errorf("test failed: expected %s, got %s", expectedJSON, actualJSON)
	}
	return nil
}

// addAt inserts value at the pointer tokens and returns the (possibly
// reallocated) node. Recursing with write-back through the parent keeps
// slice growth visible at every level.
func addAt(node interface{}, tokens []string, value interface{}) (interface{}, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	tok := tokens[0]
	switch n := node.(type) {
	case map[string]interface{}:
		if len(tokens) == 1 {
			n[tok] = value
			return n, nil
		}
		child, ok := n[tok]
		if !ok {
			return nil, fmt.Errorf("path segment %q not found", tok)
		}
		updated, err := addAt(child, tokens[1:], value)
		if err != nil {
			return nil, err
		}
		n[tok] = updated
		return n, nil
	case []interface{}:
		if len(tokens) == 1 {
			if tok == "-" {
				return append(n, value), nil
			}
			idx, err := arrayIndex(tok, len(n), true)
			if err != nil {
				return nil, err
			}
			out := make([]interface{}, 0, len(n)+1)
			out = append(out, n[:idx]...)
			out = append(out, value)
			out = append(out, n[idx:]...)
			return out, nil
		}
		idx, err := arrayIndex(tok, len(n), false)
		if err != nil {
			return nil, err
		}
		updated, err := addAt(n[idx], tokens[1:], value)
		if err != nil {
			return nil, err
		}
		n[idx] = updated
		return n, nil
	default:
		return nil, fmt.Errorf("cannot traverse into non-container at %q", tok)
	}
}

func removeAt(node interface{}, tokens []string) (interface{}, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("cannot remove document root")
	}
	tok := tokens[0]
	switch n := node.(type) {
	case map[string]interface{}:
		if len(tokens) == 1 {
			if _, ok := n[tok]; !ok {
				return nil, fmt.Errorf("path segment %q not found", tok)
			}
			delete(n, tok)
			return n, nil
		}
		child, ok := n[tok]
		if !ok {
			return nil, fmt.Errorf("path segment %q not found", tok)
		}
		updated, err := removeAt(child, tokens[1:])
		if err != nil {
			return nil, err
		}
		n[tok] = updated
		return n, nil
	case []interface{}:
		idx, err := arrayIndex(tok, len(n), false)
		if err != nil {
			return nil, err
		}
		if len(tokens) == 1 {
			out := make([]interface{}, 0, len(n)-1)
			out = append(out, n[:idx]...)
			out = append(out, n[idx+1:]...)
			return out, nil
		}
		updated, err := removeAt(n[idx], tokens[1:])
		if err != nil {
			return nil, err
		}
		n[idx] = updated
		return n, nil
	default:
		return nil, fmt.Errorf("cannot traverse into non-container at %q", tok)
	}
}

func replaceAt(node interface{}, tokens []string, value interface{}) (interface{}, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	tok := tokens[0]
	switch n := node.(type) {
	case map[string]interface{}:
		child, ok := n[tok]
		if !ok {
			return nil, fmt.Errorf("path segment %q not found", tok)
		}
		updated, err := replaceAt(child, tokens[1:], value)
		if err != nil {
			return nil, err
		}
		n[tok] = updated
		return n, nil
	case []interface{}:
		idx, err := arrayIndex(tok, len(n), false)
		if err != nil {
			return nil, err
		}
		updated, err := replaceAt(n[idx], tokens[1:], value)
		if err != nil {
			return nil, err
		}
		n[idx] = updated
		return n, nil
	default:
		return nil, fmt.Errorf("cannot traverse into non-container at %q", tok)
	}
}

func getAt(node interface{}, tokens []string) (interface{}, error) {
	current := node
	for _, tok := range tokens {
		switch n := current.(type) {
		case map[string]interface{}:
			child, ok := n[tok]
			if !ok {
				return nil, fmt.Errorf("path segment %q not found", tok)
			}
			current = child
		case []interface{}:
			idx, err := arrayIndex(tok, len(n), false)
			if err != nil {
				return nil, err
			}
			current = n[idx]
		default:
			return nil, fmt.Errorf("cannot traverse into non-container at %q", tok)
		}
	}
	return current, nil
}

// arrayIndex parses tok as an array index. allowEnd permits idx == length
// (the insertion slot at the tail used by add).
func arrayIndex(tok string, length int, allowEnd bool) (int, error) {
	idx, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	max := length
	if !allowEnd {
		max = length - 1
	}
	if idx < 0 || idx > max {
		return 0, fmt.Errorf("array index %d out of bounds (len %d)", idx, length)
	}
	return idx, nil
}

// splitPointer splits a JSON Pointer into unescaped reference tokens.
func splitPointer(path string) ([]string, error) {
	if path == "" || path == "/" {
		return nil, fmt.Errorf("empty pointer")
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("pointer %q must start with '/'", path)
	}
	raw := strings.Split(path[1:], "/")
	tokens := make([]string, len(raw))
	for i, t := range raw {
		t = strings.ReplaceAll(t, "~1", "/")
		t = strings.ReplaceAll(t, "~0", "~")
		tokens[i] = t
	}
	return tokens, nil
}

func deepCopy(m map[string]interface{}) map[string]interface{} {
	data, _ := json.Marshal(m)
	var out map[string]interface{}
	_ = json.Unmarshal(data, &out)
	if out == nil {
		out = map[string]interface{}{}
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	data, _ := json.Marshal(v)
	var out interface{}
	_ = json.Unmarshal(data, &out)
	return out
}
