package extract

import (
	"context"
	"fmt"
	"iter"
	"os"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

// HTML converts a saved web page to Markdown and yields it as one page.
// Scripts, styles and markup are dropped; link targets stay in the text.
type HTML struct {
	conv *converter.Converter
}

// NewHTML creates an HTML extractor.
func NewHTML() HTML {
	return HTML{conv: converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)}
}

// Pages implements Extractor.
func (h HTML) Pages(ctx context.Context, path string) iter.Seq2[string, error] {
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
		text, err := h.conv.ConvertString(string(data))
		if err != nil {
			yield("", fmt.Errorf("failed to convert %s: %w", path, err))
			return
		}
		yield(text, nil)
	}
}
