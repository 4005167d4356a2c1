package pd

import (
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/pd-runtime/atom"
	"github.com/wippyai/pd-runtime/engine"
	"github.com/wippyai/pd-runtime/errors"
)

// decodeText converts engine text to a string. Invalid UTF-8 means the
// engine broke its contract; it panics with a KindInvalidUTF8 error.
func decodeText(cat engine.Category, what string, b []byte) string {
	if !utf8.Valid(b) {
		panic(errors.New(errors.PhaseDecode, errors.KindInvalidUTF8).
			Category(cat.String()).
			Detail("%s is not valid UTF-8: %x", what, preview(b)).
			Build())
	}
	return string(b)
}

func preview(b []byte) []byte {
	if len(b) > 32 {
		return b[:32]
	}
	return b
}

// decodeList walks argc raw elements into atoms. A negative argc is treated
// as empty. Elements that are neither float nor symbol are skipped.
func decodeList(log *zap.Logger, cat engine.Category, argc int32, argv engine.RawList) []atom.Atom {
	if argc < 0 {
		log.Warn("negative list length from engine, treating as empty",
			zap.Stringer("category", cat), zap.Int32("argc", argc))
		argc = 0
	}
	if argv == nil {
		argc = 0
	}
	out := make([]atom.Atom, 0, argc)
	for i := 0; i < int(argc); i++ {
		raw := argv.At(i)
		switch raw.Type {
		case engine.AtomFloat:
			out = append(out, atom.Float(raw.Float))
		case engine.AtomSymbol:
			out = append(out, atom.Symbol(decodeText(cat, "list symbol", raw.Symbol)))
		}
	}
	return out
}
