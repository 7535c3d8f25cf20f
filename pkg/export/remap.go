package export

import (
	pkgerrors "github.com/pkg/errors"
)

// Remap is an explicit bidirectional mapping between physics-model
// indexes and exported element ids. It is built completely before any
// dependent table is written, so cross-references (corrector windings,
// device bindings) are plain lookups instead of state threaded through
// the export loop.
type Remap struct {
	toExport map[int]int
	toModel  map[int]int
}

// NewRemap returns an empty remap.
func NewRemap() *Remap {
	return &Remap{
		toExport: make(map[int]int),
		toModel:  make(map[int]int),
	}
}

// Add registers a model-index/export-id pair. Both sides must be unique;
// a collision means the snapshot is inconsistent.
func (r *Remap) Add(modelIndex, exportID int) error {
	if prev, ok := r.toExport[modelIndex]; ok {
		return pkgerrors.Errorf("model index %d already mapped to export id %d", modelIndex, prev)
	}
	if prev, ok := r.toModel[exportID]; ok {
		return pkgerrors.Errorf("export id %d already mapped to model index %d", exportID, prev)
	}
	r.toExport[modelIndex] = exportID
	r.toModel[exportID] = modelIndex
	return nil
}

// ToExport resolves a model index to its exported element id.
func (r *Remap) ToExport(modelIndex int) (int, bool) {
	id, ok := r.toExport[modelIndex]
	return id, ok
}

// ToModel resolves an exported element id back to its model index.
func (r *Remap) ToModel(exportID int) (int, bool) {
	idx, ok := r.toModel[exportID]
	return idx, ok
}

// Len returns the number of mapped pairs.
func (r *Remap) Len() int {
	return len(r.toExport)
}
