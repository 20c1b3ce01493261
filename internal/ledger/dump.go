package ledger

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zjrosen/ledgerkit/internal/model"
)

// Dump renders obj and its owned subtree as an indented text tree. The output
// depends only on property values and list order, so two documents with the
// same content dump identically whatever their object ids.
func Dump(obj model.Object) string {
	var b strings.Builder
	_ = Write(&b, obj)
	return b.String()
}

// Write renders obj like Dump to w.
func Write(w io.Writer, obj model.Object) error {
	return writeObject(w, obj, 0)
}

func writeObject(w io.Writer, obj model.Object, depth int) error {
	e := obj.Data()
	indent := strings.Repeat("  ", depth)
	var parts []string
	for _, p := range e.PropertySet().Scalars() {
		parts = append(parts, p.Name()+"="+formatValue(e.Value(p)))
	}
	if _, err := fmt.Fprintf(w, "%s%s %s\n", indent, e.PropertySet().Name(), strings.Join(parts, " ")); err != nil {
		return err
	}
	for _, lp := range e.PropertySet().Lists() {
		if e.List(lp).Len() == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s  %s:\n", indent, lp.Name()); err != nil {
			return err
		}
		for child := range e.List(lp).All() {
			if err := writeObject(w, child, depth+2); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return strconv.Quote(x)
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.Format("2006-01-02")
	case model.Key:
		return "@" + refLabel(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// refLabel names a referenced object by its first string property.
func refLabel(k model.Key) string {
	obj := k.Resolve()
	if obj == nil {
		return "<deleted>"
	}
	e := obj.Data()
	for _, p := range e.PropertySet().Scalars() {
		if p.Kind() == model.KindString {
			return strconv.Quote(e.GetString(p))
		}
	}
	return fmt.Sprintf("%v", k)
}
