package engine

import (
	"strconv"
	"strings"
)

// simPatch is the routing graph of one open patch. Only a handful of
// message objects take part in routing: [r]/[receive], [s]/[send] and
// [print]. Every other box keeps its index but drops what it receives.
type simPatch struct {
	objects    []simObject
	edges      map[int][]int // source object -> targets, outlet 0 only
	receivers  map[string][]int
	path       string
	dollarZero int
}

type simObject struct {
	class string
	arg   string
}

// parsePatch reads the top-level canvas of a patch file. Subpatch contents
// are skipped; the subpatch box itself occupies one index, as in the editor.
func parsePatch(path, text string, dollarZero int) *simPatch {
	p := &simPatch{
		edges:      make(map[int][]int),
		receivers:  make(map[string][]int),
		path:       path,
		dollarZero: dollarZero,
	}
	dz := strconv.Itoa(dollarZero)

	depth := 0
	for _, rec := range splitRecords(text) {
		tok := strings.Fields(rec)
		if len(tok) < 2 {
			continue
		}
		switch {
		case tok[0] == "#N" && tok[1] == "canvas":
			depth++
		case tok[0] == "#X" && tok[1] == "restore":
			depth--
			if depth == 1 {
				p.objects = append(p.objects, simObject{class: "pd"})
			}
		case tok[0] == "#X" && depth == 1:
			p.addRecord(tok, dz)
		}
	}
	return p
}

func (p *simPatch) addRecord(tok []string, dz string) {
	switch tok[1] {
	case "obj":
		obj := simObject{}
		if len(tok) > 4 {
			obj.class = tok[4]
		}
		if len(tok) > 5 {
			obj.arg = strings.ReplaceAll(tok[5], `\$0`, dz)
			obj.arg = strings.ReplaceAll(obj.arg, "$0", dz)
		}
		switch obj.class {
		case "receive":
			obj.class = "r"
		case "send":
			obj.class = "s"
		}
		if obj.class == "r" && obj.arg != "" {
			p.receivers[obj.arg] = append(p.receivers[obj.arg], len(p.objects))
		}
		p.objects = append(p.objects, obj)
	case "msg", "text", "floatatom", "symbolatom", "listbox":
		p.objects = append(p.objects, simObject{class: tok[1]})
	case "connect":
		if len(tok) < 6 {
			return
		}
		src, err1 := strconv.Atoi(tok[2])
		outlet, err2 := strconv.Atoi(tok[3])
		dst, err3 := strconv.Atoi(tok[4])
		if err1 != nil || err2 != nil || err3 != nil || outlet != 0 {
			return
		}
		p.edges[src] = append(p.edges[src], dst)
	}
}

// splitRecords splits patch text on unescaped semicolons.
func splitRecords(text string) []string {
	var out []string
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\\' && i+1 < len(text) {
			b.WriteByte(c)
			b.WriteByte(text[i+1])
			i++
			continue
		}
		if c == ';' {
			out = append(out, strings.TrimSpace(b.String()))
			b.Reset()
			continue
		}
		b.WriteByte(c)
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

// formatPrint renders a message the way [print] does.
func formatPrint(prefix, selector string, args []RawAtom) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(": ")
	switch {
	case selector == "float" && len(args) == 1:
		b.WriteString(formatRawAtom(args[0]))
		return b.String()
	case selector == "list" && len(args) > 0 && args[0].Type == AtomFloat:
		// lists that start with a number print without the selector
	default:
		b.WriteString(selector)
		if len(args) > 0 {
			b.WriteByte(' ')
		}
	}
	for i, a := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(formatRawAtom(a))
	}
	return b.String()
}

func formatRawAtom(a RawAtom) string {
	switch a.Type {
	case AtomFloat:
		return strconv.FormatFloat(a.Float, 'g', -1, 64)
	case AtomSymbol:
		return string(a.Symbol)
	default:
		return "(pointer)"
	}
}
