package internal

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

const maxDraftHistory = 100

// selectBlock returns the run of non-blank lines containing row. A blank row
// selects nothing.
func selectBlock(text string, row int) string {
	lines := strings.Split(text, "\n")
	if row < 0 || row >= len(lines) || strings.TrimSpace(lines[row]) == "" {
		return ""
	}

	start := row
	for start > 0 && strings.TrimSpace(lines[start-1]) != "" {
		start--
	}
	end := row
	for end < len(lines)-1 && strings.TrimSpace(lines[end+1]) != "" {
		end++
	}
	return strings.Join(lines[start:end+1], "\n")
}

// draftHistory is a bounded undo/redo stack of draft snapshots.
type draftHistory struct {
	undo []string
	redo []string
}

// Record pushes the text as it was before an edit.
func (h *draftHistory) Record(before string) {
	if n := len(h.undo); n > 0 && h.undo[n-1] == before {
		return
	}
	h.undo = append(h.undo, before)
	if len(h.undo) > maxDraftHistory {
		h.undo = h.undo[len(h.undo)-maxDraftHistory:]
	}
	h.redo = nil
}

// Undo returns the previous snapshot given the current text.
func (h *draftHistory) Undo(current string) (string, bool) {
	n := len(h.undo)
	if n == 0 {
		return current, false
	}
	prev := h.undo[n-1]
	h.undo = h.undo[:n-1]
	h.redo = append(h.redo, current)
	return prev, true
}

// Redo reapplies the most recently undone snapshot.
func (h *draftHistory) Redo(current string) (string, bool) {
	n := len(h.redo)
	if n == 0 {
		return current, false
	}
	next := h.redo[n-1]
	h.redo = h.redo[:n-1]
	h.undo = append(h.undo, current)
	return next, true
}

var errEmptyDraft = errors.New("nothing to indent")

// indentXML re-indents a sequence of XML elements with two spaces per level.
// Whitespace-only text between elements is dropped.
func indentXML(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errEmptyDraft
	}

	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = false

	var buf bytes.Buffer
	e := xml.NewEncoder(&buf)
	e.Indent("", "  ")

	for {
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if cd, ok := tok.(xml.CharData); ok && len(bytes.TrimSpace(cd)) == 0 {
			continue
		}
		if err := e.EncodeToken(flattenPrefixes(xml.CopyToken(tok))); err != nil {
			return "", err
		}
	}
	if err := e.Flush(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// flattenPrefixes folds raw namespace prefixes back into local names so the
// encoder writes them as they were read.
func flattenPrefixes(tok xml.Token) xml.Token {
	flat := func(n xml.Name) xml.Name {
		if n.Space == "" {
			return n
		}
		return xml.Name{Local: n.Space + ":" + n.Local}
	}

	switch t := tok.(type) {
	case xml.StartElement:
		t.Name = flat(t.Name)
		for i := range t.Attr {
			t.Attr[i].Name = flat(t.Attr[i].Name)
		}
		return t
	case xml.EndElement:
		t.Name = flat(t.Name)
		return t
	}
	return tok
}
