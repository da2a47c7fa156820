package stage

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Entry is one memoized stage value. A fresh ID is minted every time the
// stage is computed, so two reads with the same ID saw the same computation.
type Entry struct {
	id        uuid.UUID
	createdAt time.Time
	stage     string
	variant   string
	args      []any
	value     any
}

func newEntry(cfg *Configuration, value any) Entry {
	return Entry{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		stage:     cfg.Stage,
		variant:   cfg.Variant,
		args:      slices.Clone(cfg.Args),
		value:     value,
	}
}

func (e Entry) Value() any {
	return e.value
}

func (e Entry) ID() uuid.UUID {
	return e.id
}

// CreatedAt is the computation time (UTC).
func (e Entry) CreatedAt() time.Time {
	return e.createdAt
}

func (e Entry) Stage() string {
	return e.stage
}

// Variant is the variant that produced the value.
func (e Entry) Variant() string {
	return e.variant
}

// Args returns the configuration args the value was computed with.
func (e Entry) Args() []any {
	return slices.Clone(e.args)
}
