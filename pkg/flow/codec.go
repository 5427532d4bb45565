package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidChange is returned when a change record on the wire is malformed
var ErrInvalidChange = errors.New("invalid change")

// validate is a singleton validator instance
var validate = NewValidator()

// NewValidator returns a validator that reports fields by their JSON names
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// WireChange is the JSON shape of a change record, discriminated by Type
type WireChange struct {
	Type             ChangeType      `json:"type" validate:"required,oneof=position dimensions select remove add replace"`
	ID               string          `json:"id,omitempty" validate:"required_unless=Type add"`
	Position         *XYPosition     `json:"position,omitempty"`
	PositionAbsolute *XYPosition     `json:"positionAbsolute,omitempty"`
	Dragging         *bool           `json:"dragging,omitempty"`
	Dimensions       *Dimensions     `json:"dimensions,omitempty" validate:"omitempty"`
	Resizing         *bool           `json:"resizing,omitempty"`
	SetAttributes    bool            `json:"setAttributes,omitempty"`
	Selected         *bool           `json:"selected,omitempty" validate:"required_if=Type select"`
	Item             json.RawMessage `json:"item,omitempty" validate:"required_if=Type add,required_if=Type replace"`
	Index            *int            `json:"index,omitempty" validate:"omitempty,min=0"`
}

// MarshalNodeChanges encodes changes as a JSON array of wire records
func MarshalNodeChanges(changes []NodeChange) ([]byte, error) {
	wire, err := NodeChangesToWire(changes)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// MarshalEdgeChanges encodes changes as a JSON array of wire records
func MarshalEdgeChanges(changes []EdgeChange) ([]byte, error) {
	wire, err := EdgeChangesToWire(changes)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// UnmarshalNodeChanges decodes and validates a JSON array of node changes
func UnmarshalNodeChanges(data []byte) ([]NodeChange, error) {
	var wire []WireChange
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode node changes: %w", err)
	}
	return NodeChangesFromWire(wire)
}

// UnmarshalEdgeChanges decodes and validates a JSON array of edge changes
func UnmarshalEdgeChanges(data []byte) ([]EdgeChange, error) {
	var wire []WireChange
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode edge changes: %w", err)
	}
	return EdgeChangesFromWire(wire)
}

// NodeChangesToWire converts changes to their wire records
func NodeChangesToWire(changes []NodeChange) ([]WireChange, error) {
	out := make([]WireChange, 0, len(changes))
	for i, c := range changes {
		w := WireChange{Type: c.ChangeType()}
		switch c := c.(type) {
		case PositionChange:
			w.ID = c.ID
			w.Position = c.Position
			w.PositionAbsolute = c.PositionAbsolute
			w.Dragging = c.Dragging
		case DimensionsChange:
			w.ID = c.ID
			w.Dimensions = c.Dimensions
			w.Resizing = c.Resizing
			w.SetAttributes = c.SetAttributes
		case SelectChange:
			w.ID = c.ID
			w.Selected = Bool(c.Selected)
		case RemoveChange:
			w.ID = c.ID
		case NodeAddChange:
			item, err := json.Marshal(c.Item)
			if err != nil {
				return nil, fmt.Errorf("change %d: encode item: %w", i, err)
			}
			w.Item = item
			w.Index = c.Index
		case NodeReplaceChange:
			item, err := json.Marshal(c.Item)
			if err != nil {
				return nil, fmt.Errorf("change %d: encode item: %w", i, err)
			}
			w.ID = c.ID
			w.Item = item
		default:
			return nil, fmt.Errorf("change %d: %w: unsupported node change %T", i, ErrInvalidChange, c)
		}
		out = append(out, w)
	}
	return out, nil
}

// EdgeChangesToWire converts changes to their wire records
func EdgeChangesToWire(changes []EdgeChange) ([]WireChange, error) {
	out := make([]WireChange, 0, len(changes))
	for i, c := range changes {
		w := WireChange{Type: c.ChangeType()}
		switch c := c.(type) {
		case SelectChange:
			w.ID = c.ID
			w.Selected = Bool(c.Selected)
		case RemoveChange:
			w.ID = c.ID
		case EdgeAddChange:
			item, err := json.Marshal(c.Item)
			if err != nil {
				return nil, fmt.Errorf("change %d: encode item: %w", i, err)
			}
			w.Item = item
			w.Index = c.Index
		case EdgeReplaceChange:
			item, err := json.Marshal(c.Item)
			if err != nil {
				return nil, fmt.Errorf("change %d: encode item: %w", i, err)
			}
			w.ID = c.ID
			w.Item = item
		default:
			return nil, fmt.Errorf("change %d: %w: unsupported edge change %T", i, ErrInvalidChange, c)
		}
		out = append(out, w)
	}
	return out, nil
}

// NodeChangesFromWire validates wire records and converts them to node
// changes. The first invalid record aborts the whole batch.
func NodeChangesFromWire(wire []WireChange) ([]NodeChange, error) {
	out := make([]NodeChange, 0, len(wire))
	for i := range wire {
		w := &wire[i]
		if err := validateWire(w); err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		switch w.Type {
		case ChangePosition:
			out = append(out, PositionChange{ID: w.ID, Position: w.Position, PositionAbsolute: w.PositionAbsolute, Dragging: w.Dragging})
		case ChangeDimensions:
			out = append(out, DimensionsChange{ID: w.ID, Dimensions: w.Dimensions, Resizing: w.Resizing, SetAttributes: w.SetAttributes})
		case ChangeSelect:
			out = append(out, SelectChange{ID: w.ID, Selected: *w.Selected})
		case ChangeRemove:
			out = append(out, RemoveChange{ID: w.ID})
		case ChangeAdd, ChangeReplace:
			var item Node
			if err := json.Unmarshal(w.Item, &item); err != nil {
				return nil, fmt.Errorf("change %d: %w: item: %v", i, ErrInvalidChange, err)
			}
			if item.ID == "" {
				return nil, fmt.Errorf("change %d: %w: item.id: field is required", i, ErrInvalidChange)
			}
			if w.Type == ChangeAdd {
				out = append(out, NodeAddChange{Item: item, Index: w.Index})
			} else {
				out = append(out, NodeReplaceChange{ID: w.ID, Item: item})
			}
		}
	}
	return out, nil
}

// EdgeChangesFromWire validates wire records and converts them to edge
// changes. Node-only types are rejected.
func EdgeChangesFromWire(wire []WireChange) ([]EdgeChange, error) {
	out := make([]EdgeChange, 0, len(wire))
	for i := range wire {
		w := &wire[i]
		if err := validateWire(w); err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		switch w.Type {
		case ChangeSelect:
			out = append(out, SelectChange{ID: w.ID, Selected: *w.Selected})
		case ChangeRemove:
			out = append(out, RemoveChange{ID: w.ID})
		case ChangeAdd, ChangeReplace:
			var item Edge
			if err := json.Unmarshal(w.Item, &item); err != nil {
				return nil, fmt.Errorf("change %d: %w: item: %v", i, ErrInvalidChange, err)
			}
			if item.ID == "" || item.Source == "" || item.Target == "" {
				return nil, fmt.Errorf("change %d: %w: item requires id, source and target", i, ErrInvalidChange)
			}
			if w.Type == ChangeAdd {
				out = append(out, EdgeAddChange{Item: item, Index: w.Index})
			} else {
				out = append(out, EdgeReplaceChange{ID: w.ID, Item: item})
			}
		default:
			return nil, fmt.Errorf("change %d: %w: %q does not apply to edges", i, ErrInvalidChange, w.Type)
		}
	}
	return out, nil
}

func validateWire(w *WireChange) error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChange, formatValidationError(err))
	}
	return nil
}

// formatValidationError reports the first failing field in a readable form
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		switch e.Tag() {
		case "required", "required_if", "required_unless":
			return fmt.Errorf("%s: field is required", field)
		case "oneof":
			return fmt.Errorf("%s: unknown value %q", field, e.Value())
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
