package gpmf

import "encoding/binary"

// MaxNestLevel bounds how deeply records may nest.
const MaxNestLevel = 16

const headerSize = 8

// Level selects how far a search may move through the record tree.
type Level int

const (
	// CurrentLevel confines a search to siblings of the current record.
	CurrentLevel Level = iota
	// Recurse lets a search descend into nested records and climb back out
	// of exhausted ones.
	Recurse
)

// Cursor is a position inside a GPMF payload. It is a plain value: assigning
// it copies the full traversal state, which is how lookahead searches are
// done without disturbing the original position.
type Cursor struct {
	buf   []byte
	pos   int
	depth int

	// Per nesting depth: offset of the first child, end of the children,
	// and offset of the enclosing container's header (unused at depth 0).
	start  [MaxNestLevel]int
	end    [MaxNestLevel]int
	parent [MaxNestLevel]int
}

// Init validates buf as a GPMF payload and returns a cursor positioned on
// its first record. The buffer is not copied; it must not change while the
// cursor is in use.
func Init(buf []byte) (Cursor, error) {
	if err := Validate(buf); err != nil {
		return Cursor{}, err
	}
	c := Cursor{buf: buf}
	c.Reset()
	return c, nil
}

// Reset moves the cursor back to the first record of the payload.
func (c *Cursor) Reset() {
	c.pos = 0
	c.depth = 0
	c.start[0] = 0
	c.end[0] = len(c.buf)
	c.parent[0] = 0
}

// Depth returns the nesting depth of the current record, 0 for top level.
func (c *Cursor) Depth() int { return c.depth }

// Offset returns the byte offset of the current record header.
func (c *Cursor) Offset() int { return c.pos }

// Key returns the FourCC of the current record.
func (c *Cursor) Key() FourCC {
	return FourCC(binary.BigEndian.Uint32(c.buf[c.pos:]))
}

// Type returns the element type tag of the current record.
func (c *Cursor) Type() Type {
	return Type(c.buf[c.pos+4])
}

// StructSize returns the byte size of one repeated struct.
func (c *Cursor) StructSize() int {
	return int(c.buf[c.pos+5])
}

// Repeat returns how many structs (samples) the current record holds.
func (c *Cursor) Repeat() int {
	return int(binary.BigEndian.Uint16(c.buf[c.pos+6:]))
}

// ElementsInStruct returns the number of typed elements in one struct. For
// nested and complex records it is 1.
func (c *Cursor) ElementsInStruct() int {
	size := c.Type().Size()
	if size == 0 {
		return 1
	}
	return c.StructSize() / size
}

// DataSize returns the unpadded data length declared by the header.
func (c *Cursor) DataSize() int {
	return c.StructSize() * c.Repeat()
}

// RawData returns the current record's data bytes, without padding. The
// slice aliases the payload buffer.
func (c *Cursor) RawData() []byte {
	from := c.pos + headerSize
	to := from + c.DataSize()
	if to > c.end[c.depth] {
		to = c.end[c.depth]
	}
	return c.buf[from:to]
}

// Next moves to the following record. With CurrentLevel it only visits
// siblings; with Recurse it walks the tree depth first. On ErrNotFound the
// cursor is left where it was.
func (c *Cursor) Next(level Level) error {
	saved := *c
	if err := c.advance(level); err != nil {
		*c = saved
		return err
	}
	return nil
}

// FindNext moves to the next record with the given key, searching in the
// same order as Next. The current record itself is not considered. On
// ErrNotFound the cursor is left where it was.
func (c *Cursor) FindNext(key FourCC, level Level) error {
	saved := *c
	for {
		if err := c.advance(level); err != nil {
			*c = saved
			return err
		}
		if c.Key() == key {
			return nil
		}
	}
}

// FindPrev moves to the closest preceding sibling with the given key. With
// Recurse the search continues among the siblings that precede each
// enclosing container. On ErrNotFound the cursor is left where it was.
func (c *Cursor) FindPrev(key FourCC, level Level) error {
	dup := *c
	for {
		if off, ok := dup.lastBefore(key); ok {
			dup.pos = off
			*c = dup
			return nil
		}
		if level != Recurse || dup.depth == 0 {
			return ErrNotFound
		}
		dup.pos = dup.parent[dup.depth]
		dup.depth--
	}
}

// lastBefore scans the current level from its first record up to, but not
// including, the current record.
func (c *Cursor) lastBefore(key FourCC) (int, bool) {
	found, ok := 0, false
	for off := c.start[c.depth]; off < c.pos; off = c.nextOffset(off) {
		if FourCC(binary.BigEndian.Uint32(c.buf[off:])) == key {
			found, ok = off, true
		}
	}
	return found, ok
}

func (c *Cursor) advance(level Level) error {
	if c.atEnd() {
		return ErrNotFound
	}
	if level == Recurse && c.Type() == TypeNest && c.DataSize() > 0 && c.depth+1 < MaxNestLevel {
		from := c.pos + headerSize
		c.depth++
		c.parent[c.depth] = c.pos
		c.start[c.depth] = from
		c.end[c.depth] = from + c.DataSize()
		c.pos = from
	} else {
		c.pos = c.nextOffset(c.pos)
	}
	for c.atEnd() {
		if level != Recurse || c.depth == 0 {
			return ErrNotFound
		}
		container := c.parent[c.depth]
		c.depth--
		c.pos = c.nextOffset(container)
	}
	return nil
}

// atEnd reports whether no further record starts at the current position
// of the current level. A zero key is treated as trailing padding.
func (c *Cursor) atEnd() bool {
	end := c.end[c.depth]
	if c.pos+headerSize > end {
		return true
	}
	return binary.BigEndian.Uint32(c.buf[c.pos:]) == 0
}

// nextOffset returns the offset of the record following the one at off.
func (c *Cursor) nextOffset(off int) int {
	size := int(c.buf[off+5]) * int(binary.BigEndian.Uint16(c.buf[off+6:]))
	return off + headerSize + align4(size)
}

func align4(n int) int {
	return (n + 3) &^ 3
}
