package wizard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/tailor/internal/models"
)

// Field paths address CV properties with the grammar `a.b[0].c`: dotted
// object keys with optional list indices. Setting index == len(list)
// appends; anything past that is rejected rather than sparsely filled.

type pathSegment struct {
	key   string
	index int // -1 when no index
}

// parseFieldPath splits "work_experience[0].bullets[2]" into segments
func parseFieldPath(path string) ([]pathSegment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("field path is empty")
	}

	var segments []pathSegment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("field path %q has an empty segment", path)
		}

		key := part
		index := -1
		if open := strings.Index(part, "["); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("segment %q has an unterminated index", part)
			}
			idxStr := part[open+1 : len(part)-1]
			n, err := strconv.Atoi(idxStr)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("segment %q has an invalid index", part)
			}
			key = part[:open]
			index = n
		}
		if key == "" {
			return nil, fmt.Errorf("segment %q is missing a key", part)
		}
		segments = append(segments, pathSegment{key: key, index: index})
	}
	return segments, nil
}

// ApplyFieldUpdate sets value at path inside the CV, returning the updated
// copy. The CV goes through its JSON form so paths use wire names
// (full_name, work_experience), matching what clients see.
func ApplyFieldUpdate(cv *models.CVData, path string, value interface{}) (*models.CVData, error) {
	segments, err := parseFieldPath(path)
	if err != nil {
		return nil, models.NewAppError(models.ErrKindBadRequest, "invalid field path").
			WithSuggestion("use the a.b[0].c form with wire field names").WithCause(err)
	}

	data, err := json.Marshal(cv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cv: %w", err)
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode cv: %w", err)
	}

	if err := setPath(tree, segments, value); err != nil {
		return nil, models.NewAppError(models.ErrKindBadRequest, "field path cannot be applied").
			WithDetails(map[string]string{"field_path": path}).
			WithSuggestion("check the path against the current cv shape").WithCause(err)
	}

	updated, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode cv: %w", err)
	}
	var out models.CVData
	if err := json.Unmarshal(updated, &out); err != nil {
		return nil, models.NewAppError(models.ErrKindValidation, "updated value does not fit the cv shape").
			WithDetails(map[string]string{"field_path": path}).
			WithSuggestion("check the value type for this field").WithCause(err)
	}
	return &out, nil
}

func setPath(node interface{}, segments []pathSegment, value interface{}) error {
	seg := segments[0]
	last := len(segments) == 1

	obj, ok := node.(map[string]interface{})
	if !ok {
		return fmt.Errorf("cannot descend into non-object at %q", seg.key)
	}

	if seg.index < 0 {
		if last {
			obj[seg.key] = value
			return nil
		}
		child, exists := obj[seg.key]
		if !exists || child == nil {
			child = map[string]interface{}{}
			obj[seg.key] = child
		}
		return setPath(child, segments[1:], value)
	}

	// Indexed segment: the key must hold a list
	raw, exists := obj[seg.key]
	list, ok := raw.([]interface{})
	if !ok {
		if exists && raw != nil {
			return fmt.Errorf("%q is not a list", seg.key)
		}
		list = []interface{}{}
	}

	switch {
	case seg.index < len(list):
		// in range
	case seg.index == len(list):
		// append position: grow by one
		var blank interface{}
		if !last {
			blank = map[string]interface{}{}
		}
		list = append(list, blank)
	default:
		return fmt.Errorf("index %d out of range for %q (len %d)", seg.index, seg.key, len(list))
	}
	obj[seg.key] = list

	if last {
		list[seg.index] = value
		return nil
	}
	if list[seg.index] == nil {
		list[seg.index] = map[string]interface{}{}
	}
	return setPath(list[seg.index], segments[1:], value)
}
