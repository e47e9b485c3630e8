package model

import (
	"reflect"
)

type write struct {
	field Field
	value any
	clear bool
}

// Tx accumulates mutations of one component. The last write of a field
// wins; fields ending at their committed value are not reported.
//
// A Tx is used by a single goroutine and must not be shared.
type Tx struct {
	c *Component

	writes []write
	index  map[Field]int

	publication *bool
	done        bool
}

// Component returns the component the batch mutates.
func (tx *Tx) Component() *Component {
	return tx.c
}

func (tx *Tx) stage(w write) {
	if tx.done {
		return
	}
	if tx.index == nil {
		tx.index = make(map[Field]int)
	}
	if i, ok := tx.index[w.field]; ok {
		tx.writes[i] = w
		return
	}
	tx.index[w.field] = len(tx.writes)
	tx.writes = append(tx.writes, w)
}

// Set stages a field value.
func (tx *Tx) Set(f Field, v any) {
	tx.stage(write{field: f, value: v})
}

// Clear stages the removal of a field.
func (tx *Tx) Clear(f Field) {
	tx.stage(write{field: f, clear: true})
}

// Get returns the value of a field as seen by this batch.
func (tx *Tx) Get(f Field) (any, bool) {
	if i, ok := tx.index[f]; ok {
		w := tx.writes[i]
		if w.clear {
			return nil, false
		}
		return w.value, true
	}
	return tx.c.Get(f)
}

// Publish stages the publication of the component.
func (tx *Tx) Publish() {
	if tx.done {
		return
	}
	p := true
	tx.publication = &p
}

// Unpublish stages the removal of the component from consumers' view.
func (tx *Tx) Unpublish() {
	if tx.done {
		return
	}
	p := false
	tx.publication = &p
}

// Commit applies the batch and notifies observers once if anything changed.
// Calling Commit again is a no-op.
func (tx *Tx) Commit() {
	if tx.done {
		return
	}
	tx.done = true

	if len(tx.writes) == 0 && tx.publication == nil {
		return
	}

	ch, obs := tx.c.apply(tx)
	if len(ch.Fields) == 0 && !ch.PublicationChanged {
		return
	}

	for _, o := range obs {
		o.OnChange(tx.c, ch)
	}
	tx.c.registry.notify(tx.c, ch)
}

func equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
