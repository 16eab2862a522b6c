// services/dimu/internal/params/codec.go
package params

import (
	"bytes"
	"strconv"
)

// MaxLine bounds one formatted "NAME\tVALUE\n" record.
const MaxLine = 128

// AppendLine appends the record for id with value v.
func AppendLine(dst []byte, id ID, v float32) []byte {
	dst = append(dst, names[id]...)
	dst = append(dst, '\t')
	dst = strconv.AppendFloat(dst, float64(v), 'e', -1, 32)
	return append(dst, '\n')
}

// Format writes the record for slot id of t into buf and returns its length,
// or 0 when buf is too small.
func Format(buf []byte, t *Table, id ID) int {
	var tmp [MaxLine]byte
	line := AppendLine(tmp[:0], id, t.Get(id))
	if len(line) > len(buf) {
		return 0
	}
	return copy(buf, line)
}

// IsTerminator reports whether b ends a persisted stream (erased or zeroed).
func IsTerminator(b byte) bool { return b == 0xFF || b == 0x00 }

// Parser applies records to a table as blocks arrive. Records may be split
// across blocks. Unknown names and malformed lines are skipped.
type Parser struct {
	t       *Table
	line    []byte
	long    bool
	done    bool
	applied int
	skipped int
}

func NewParser(t *Table) *Parser {
	return &Parser{t: t, line: make([]byte, 0, MaxLine)}
}

// Feed consumes one block. It returns false once the stream terminator has
// been seen; later blocks are ignored.
func (p *Parser) Feed(block []byte) bool {
	if p.done {
		return false
	}
	for _, b := range block {
		if IsTerminator(b) {
			p.Flush()
			p.done = true
			return false
		}
		if b == '\n' {
			p.endLine()
			continue
		}
		if len(p.line) == MaxLine {
			p.long = true
			continue
		}
		p.line = append(p.line, b)
	}
	return true
}

// Flush applies a trailing record that has no newline.
func (p *Parser) Flush() {
	if len(p.line) > 0 || p.long {
		p.endLine()
	}
}

func (p *Parser) Done() bool   { return p.done }
func (p *Parser) Applied() int { return p.applied }
func (p *Parser) Skipped() int { return p.skipped }

func (p *Parser) endLine() {
	defer func() {
		p.line = p.line[:0]
		p.long = false
	}()
	if p.long {
		p.skipped++
		return
	}
	f := bytes.Fields(p.line)
	if len(f) == 0 {
		return
	}
	if len(f) != 2 {
		p.skipped++
		return
	}
	id, ok := Lookup(string(f[0]))
	if !ok {
		p.skipped++
		return
	}
	v, err := strconv.ParseFloat(string(f[1]), 32)
	if err != nil {
		p.skipped++
		return
	}
	p.t.Set(id, float32(v))
	p.applied++
}
