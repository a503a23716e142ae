package sshconfig

import (
	"bytes"
	"strings"
)

// BlockKind distinguishes Host blocks from everything else.
type BlockKind int

const (
	// BlockPreamble holds lines before the first top-level directive.
	BlockPreamble BlockKind = iota
	// BlockHost is a "Host ..." block.
	BlockHost
	// BlockDirective is any other top-level line (Match, Include, comments)
	// and its continuation lines.
	BlockDirective
)

// Block is a top-level line and the lines that belong to it, kept verbatim.
type Block struct {
	Kind  BlockKind
	Lines []string
}

// Header returns the block's first line.
func (b Block) Header() string {
	if len(b.Lines) == 0 {
		return ""
	}
	return b.Lines[0]
}

// Matches reports whether b is exactly "Host <alias>". Multi-pattern hosts
// such as "Host demo other" never match.
func (b Block) Matches(alias string) bool {
	return b.Kind == BlockHost && strings.TrimSpace(b.Header()) == "Host "+alias
}

// Document is a parsed SSH client configuration.
type Document struct {
	Blocks []Block

	// trailingNewline records whether the input ended with "\n".
	trailingNewline bool
}

// Parse splits data into blocks. It never fails.
func Parse(data []byte) *Document {
	doc := &Document{}
	if len(data) == 0 {
		return doc
	}

	text := string(data)
	doc.trailingNewline = strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")

	var cur *Block
	for _, line := range strings.Split(text, "\n") {
		if isTopLevel(line) {
			doc.Blocks = append(doc.Blocks, Block{Kind: kindOf(line), Lines: []string{line}})
			cur = &doc.Blocks[len(doc.Blocks)-1]
			continue
		}
		if cur == nil {
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockPreamble})
			cur = &doc.Blocks[len(doc.Blocks)-1]
		}
		cur.Lines = append(cur.Lines, line)
	}
	return doc
}

// isTopLevel reports whether line starts a new block.
func isTopLevel(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return line[0] != ' ' && line[0] != '\t'
}

func kindOf(header string) BlockKind {
	fields := strings.Fields(header)
	if len(fields) > 0 && fields[0] == "Host" {
		return BlockHost
	}
	return BlockDirective
}

// Bytes serializes the document.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	n := 0
	for _, b := range d.Blocks {
		for _, line := range b.Lines {
			if n > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(line)
			n++
		}
	}
	if n > 0 && d.trailingNewline {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Has reports whether a block for alias exists.
func (d *Document) Has(alias string) bool {
	for _, b := range d.Blocks {
		if b.Matches(alias) {
			return true
		}
	}
	return false
}

// Remove drops every block for alias and returns how many were dropped.
// Blank lines trailing a removed block go with it.
func (d *Document) Remove(alias string) int {
	kept := d.Blocks[:0]
	removed := 0
	for _, b := range d.Blocks {
		if b.Matches(alias) {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	d.Blocks = kept
	return removed
}

// Append adds b at the end, separated from existing content by a blank line
// unless the content already ends with one.
func (d *Document) Append(b Block) {
	if len(d.Blocks) > 0 {
		last := &d.Blocks[len(d.Blocks)-1]
		if n := len(last.Lines); n == 0 || strings.TrimSpace(last.Lines[n-1]) != "" {
			last.Lines = append(last.Lines, "")
		}
	}
	d.Blocks = append(d.Blocks, b)
	d.trailingNewline = true
}
