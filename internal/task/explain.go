package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/phrazzld/scry-studio/internal/store"
)

// ExplainNodeRequest asks for an explanation of one mind map node.
type ExplainNodeRequest struct {
	ProjectID uuid.UUID
	OutputID  uuid.UUID
	NodeID    string
	Options   generation.Options
}

// ExpandNodeRequest asks for new children of one mind map node.
type ExpandNodeRequest struct {
	ProjectID uuid.UUID
	OutputID  uuid.UUID
	NodeID    string
	Options   generation.Options
}

// nodeTarget is a validated node of a complete mind map output.
type nodeTarget struct {
	output  *domain.Output
	mindMap *domain.MindMap
	node    domain.Node
}

// StartExplainNode starts a task streaming an explanation of a node. The
// explanation is delivered through the sink only; nothing is persisted.
func (o *Orchestrator) StartExplainNode(ctx context.Context, req ExplainNodeRequest) (StartResult, error) {
	target, err := o.resolveNode(ctx, req.ProjectID, req.OutputID, req.NodeID)
	if err != nil {
		return StartResult{}, err
	}
	if o.isClosed() {
		return StartResult{}, ErrShuttingDown
	}

	acc, err := newAccumulator(TaskTypeExplain, domain.OutputKindMindMap, nil)
	if err != nil {
		return StartResult{}, err
	}

	t := newGenerationTask(TaskTypeExplain, req.ProjectID, target.output.ID, domain.OutputKindMindMap, target.node.ID)
	j := &job{
		task: t,
		acc:  acc,
		prepare: func(ctx context.Context) (iter.Seq2[generation.Event, error], error) {
			nreq, err := o.nodeRequest(ctx, target, req.Options)
			if err != nil {
				return nil, err
			}
			return o.generator.ExplainNode(ctx, nreq), nil
		},
	}

	if err := o.launch(ctx, j); err != nil {
		return StartResult{}, err
	}
	return StartResult{TaskID: t.ID, OutputID: target.output.ID}, nil
}

// StartExpandNode starts a task adding children to a node. The new nodes and
// edges are merged into the stored mind map. A failed expansion leaves the
// output untouched.
func (o *Orchestrator) StartExpandNode(ctx context.Context, req ExpandNodeRequest) (StartResult, error) {
	target, err := o.resolveNode(ctx, req.ProjectID, req.OutputID, req.NodeID)
	if err != nil {
		return StartResult{}, err
	}
	if o.isClosed() {
		return StartResult{}, ErrShuttingDown
	}

	acc, err := newAccumulator(TaskTypeExpand, domain.OutputKindMindMap, target.mindMap)
	if err != nil {
		return StartResult{}, err
	}

	outputID := target.output.ID
	t := newGenerationTask(TaskTypeExpand, req.ProjectID, outputID, domain.OutputKindMindMap, target.node.ID)
	j := &job{
		task: t,
		acc:  acc,
		prepare: func(ctx context.Context) (iter.Seq2[generation.Event, error], error) {
			nreq, err := o.nodeRequest(ctx, target, req.Options)
			if err != nil {
				return nil, err
			}
			return o.generator.ExpandNode(ctx, nreq), nil
		},
		persist: func(ctx context.Context, res Result) error {
			// Merge into the stored map so concurrent expansions of the same
			// output do not overwrite each other.
			current, err := o.outputs.GetByID(ctx, outputID)
			if err != nil {
				return fmt.Errorf("failed to reload output: %w", err)
			}
			m, err := current.MindMap()
			if err != nil {
				return err
			}
			mergeGraph(m, res.Graph)

			data, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("encode mind map: %w", err)
			}
			if err := current.ReplaceData(data); err != nil {
				return err
			}
			if err := o.outputs.Update(ctx, current); err != nil {
				return fmt.Errorf("failed to save output: %w", err)
			}
			return nil
		},
	}

	if err := o.launch(ctx, j); err != nil {
		return StartResult{}, err
	}
	return StartResult{TaskID: t.ID, OutputID: outputID}, nil
}

// ExplainNodeStream returns the explanation of a node as a stream of text.
// The stream bypasses the registry and the sink, and starts generating only
// when iterated. It can be iterated once; a second iteration yields
// ErrStreamConsumed.
func (o *Orchestrator) ExplainNodeStream(ctx context.Context, req ExplainNodeRequest) (iter.Seq2[string, error], error) {
	target, err := o.resolveNode(ctx, req.ProjectID, req.OutputID, req.NodeID)
	if err != nil {
		return nil, err
	}

	var consumed atomic.Bool
	return func(yield func(string, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}

		nreq, err := o.nodeRequest(ctx, target, req.Options)
		if err != nil {
			yield("", err)
			return
		}

		for ev, err := range o.generator.ExplainNode(ctx, nreq) {
			if err != nil {
				yield("", err)
				return
			}
			if ev.Kind != generation.EventToken || ev.Token == "" {
				continue
			}
			if !yield(ev.Token, nil) {
				return
			}
		}
	}, nil
}

// resolveNode validates the ids of a node operation and loads its target.
func (o *Orchestrator) resolveNode(ctx context.Context, projectID, outputID uuid.UUID, nodeID string) (nodeTarget, error) {
	if projectID == uuid.Nil {
		return nodeTarget{}, fmt.Errorf("%w: project ID is required", domain.ErrValidation)
	}
	if outputID == uuid.Nil {
		return nodeTarget{}, fmt.Errorf("%w: output ID is required", domain.ErrValidation)
	}
	if strings.TrimSpace(nodeID) == "" {
		return nodeTarget{}, fmt.Errorf("%w: node ID is required", domain.ErrValidation)
	}

	output, err := o.outputs.GetByID(ctx, outputID)
	if err != nil {
		return nodeTarget{}, err
	}
	if output.ProjectID != projectID {
		return nodeTarget{}, store.ErrOutputNotFound
	}
	if output.Kind != domain.OutputKindMindMap {
		return nodeTarget{}, ErrNotMindMap
	}
	if output.Status != domain.OutputStatusComplete {
		return nodeTarget{}, ErrOutputNotComplete
	}

	m, err := output.MindMap()
	if err != nil {
		return nodeTarget{}, err
	}
	node, err := m.FindNode(nodeID)
	if err != nil {
		return nodeTarget{}, err
	}

	return nodeTarget{output: output, mindMap: m, node: node}, nil
}

// nodeRequest gathers the source text of the output for a node operation.
// A node can be explained from the map alone, so missing text is not an error.
func (o *Orchestrator) nodeRequest(ctx context.Context, target nodeTarget, opts generation.Options) (generation.NodeRequest, error) {
	docs, err := o.loadDocuments(ctx, target.output.ProjectID, target.output.SourceDocumentIDs)
	if err != nil {
		return generation.NodeRequest{}, err
	}

	var source string
	in, err := generation.BuildInput(domain.OutputKindMindMap, target.output.Title, docs)
	switch {
	case err == nil:
		source = in.Text
	case errors.Is(err, generation.ErrNoContent):
	default:
		return generation.NodeRequest{}, err
	}

	return generation.NodeRequest{
		OutputID:   target.output.ID,
		Node:       target.node,
		MindMap:    target.mindMap.Clone(),
		SourceText: source,
		Options:    opts,
	}, nil
}
