package x86

import "strings"

// EntryPoint is the label the linker starts execution at.
const EntryPoint = "_start"

// Section is a labelled run of blobs.
type Section struct {
	Name  string
	Blobs []Blob
}

// Append adds blobs to the end of s.
func (s *Section) Append(blobs ...Blob) {
	s.Blobs = append(s.Blobs, blobs...)
}

// StackEffect sums the stack effect of every blob in s.
func (s *Section) StackEffect() int {
	n := 0
	for _, b := range s.Blobs {
		n += b.StackEffect()
	}
	return n
}

func (s *Section) writeTo(sb *strings.Builder) {
	sb.WriteString(s.Name)
	sb.WriteString(":\n")
	for _, b := range s.Blobs {
		sb.WriteString(b.String())
		sb.WriteByte('\n')
	}
}

func (s *Section) String() string {
	var sb strings.Builder
	s.writeTo(&sb)
	return sb.String()
}

// Program is an optional data section followed by the text sections.
//
//	section .data
//	<data>
//	section .text
//	global _start
//	_start:
//	    mov rax, 6
//	    push rax
type Program struct {
	Data *Section
	Text []Section
}

// String renders p as NASM source. Rendering cannot fail.
func (p *Program) String() string {
	var sb strings.Builder
	if p.Data != nil {
		sb.WriteString("section .data\n")
		p.Data.writeTo(&sb)
	}
	sb.WriteString("section .text\n")
	sb.WriteString("global " + EntryPoint + "\n")
	for i := range p.Text {
		p.Text[i].writeTo(&sb)
	}
	return sb.String()
}
