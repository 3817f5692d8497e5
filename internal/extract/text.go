package extract

import (
	"context"
	"fmt"
	"iter"
	"os"
	"unicode/utf8"
)

// PlainText treats a text file as a single page.
type PlainText struct{}

// Pages implements Extractor.
func (PlainText) Pages(ctx context.Context, path string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			yield("", fmt.Errorf("failed to read %s: %w", path, err))
			return
		}
		if !utf8.Valid(data) {
			yield("", fmt.Errorf("%s is not valid UTF-8", path))
			return
		}
		yield(string(data), nil)
	}
}
