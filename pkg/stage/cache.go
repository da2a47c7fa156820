package stage

// resultCache holds computed values as a contiguous prefix indexed by stage
// position: if entries[i] exists then entries[j] exists for every j < i.
type resultCache struct {
	entries []Entry
}

func (c *resultCache) Len() int {
	return len(c.entries)
}

func (c *resultCache) Load(position int) (Entry, bool) {
	if position < 0 || position >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[position], true
}

// Append stores the value of the next stage. It panics if position is not the
// next free slot, since that would leave a gap in the prefix.
func (c *resultCache) Append(position int, e Entry) {
	if position != len(c.entries) {
		panic("stage: cache append out of order")
	}
	c.entries = append(c.entries, e)
}

// Truncate drops the entries at position and beyond and reports how many were
// dropped.
func (c *resultCache) Truncate(position int) int {
	if position < 0 {
		position = 0
	}
	if position >= len(c.entries) {
		return 0
	}
	dropped := len(c.entries) - position
	clear(c.entries[position:])
	c.entries = c.entries[:position]
	return dropped
}
