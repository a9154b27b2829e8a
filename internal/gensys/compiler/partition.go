package compiler

// Partition tracks which bytes of a growing chunk are in use. The packer
// walks candidate offsets in alignment strides and takes the first free one.
type Partition struct {
	used []bool
}

// Occupy marks [offset, offset+size) as used.
func (p *Partition) Occupy(offset, size int) {
	if end := offset + size; end > len(p.used) {
		p.used = append(p.used, make([]bool, end-len(p.used))...)
	}
	for i := offset; i < offset+size; i++ {
		p.used[i] = true
	}
}

// CanOccupy reports whether no byte of [offset, offset+size) is used.
func (p *Partition) CanOccupy(offset, size int) bool {
	for i := offset; i < offset+size && i < len(p.used); i++ {
		if p.used[i] {
			return false
		}
	}
	return true
}

// MinimumSize is one past the highest used byte.
func (p *Partition) MinimumSize() int {
	for i := len(p.used) - 1; i >= 0; i-- {
		if p.used[i] {
			return i + 1
		}
	}
	return 0
}

// Place occupies the lowest free offset that is a multiple of align and
// returns it.
func (p *Partition) Place(size, align int) int {
	off := 0
	for !p.CanOccupy(off, size) {
		off += align
	}
	p.Occupy(off, size)
	return off
}
