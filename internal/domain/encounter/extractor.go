package encounter

import (
	"context"

	"github.com/woundnote/woundnote/internal/platform/treepatch"
)

// Extractor turns free-form dictation into structured updates. Implemented
// by the nlp package; this package only sees the contract.
type Extractor interface {
	// ExtractNote produces a full structured note from an initial dictation.
	ExtractNote(ctx context.Context, transcript string) (StructuredNote, error)

	// ExtractPatch produces an RFC 6902 batch describing how an addendum
	// changes the current record. current is the record's structural view.
	// An empty batch means the addendum changes nothing.
	ExtractPatch(ctx context.Context, current map[string]interface{}, transcript string) ([]treepatch.Operation, error)
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
