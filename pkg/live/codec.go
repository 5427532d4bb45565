package live

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

// ErrInvalidFrame is returned for frames that fail to decode or validate
var ErrInvalidFrame = errors.New("invalid frame")

var validate = flow.NewValidator()

// EncodeFrame serializes a frame
func EncodeFrame(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return data, nil
}

// DecodeFrame parses and validates a frame
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if err := validate.Struct(&f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Frame{}, fmt.Errorf("%w: %s failed %s", ErrInvalidFrame, verrs[0].Field(), verrs[0].Tag())
		}
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return f, nil
}

// ChangesFrame builds a changes frame for cs
func ChangesFrame(seq uint64, client string, cs flow.ChangeSet) (Frame, error) {
	nodes, err := flow.NodeChangesToWire(cs.Nodes)
	if err != nil {
		return Frame{}, err
	}
	edges, err := flow.EdgeChangesToWire(cs.Edges)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameChanges, Seq: seq, Client: client, Nodes: nodes, Edges: edges}, nil
}

// SnapshotFrame builds a snapshot frame
func SnapshotFrame(seq uint64, doc flow.Document) Frame {
	return Frame{Type: FrameSnapshot, Seq: seq, Document: &doc}
}

// ErrorFrame builds an error frame
func ErrorFrame(err error) Frame {
	return Frame{Type: FrameError, Error: err.Error()}
}

// ChangeSet decodes the changes carried by the frame. Malformed records
// fail with flow.ErrInvalidChange.
func (f Frame) ChangeSet() (flow.ChangeSet, error) {
	nodes, err := flow.NodeChangesFromWire(f.Nodes)
	if err != nil {
		return flow.ChangeSet{}, fmt.Errorf("nodes: %w", err)
	}
	edges, err := flow.EdgeChangesFromWire(f.Edges)
	if err != nil {
		return flow.ChangeSet{}, fmt.Errorf("edges: %w", err)
	}
	return flow.ChangeSet{Nodes: nodes, Edges: edges}, nil
}
