package extract

import (
	"context"
	"fmt"
	"iter"

	"github.com/ledongthuc/pdf"
)

// PDF extracts text from PDF files.
type PDF struct{}

// Pages implements Extractor. The pdf library panics on some malformed
// files; panics are converted to errors.
func (PDF) Pages(ctx context.Context, path string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f, r, err := openPDF(path)
		if err != nil {
			yield("", err)
			return
		}
		defer func() { _ = f.Close() }()

		n, err := numPages(r)
		if err != nil {
			yield("", fmt.Errorf("%s: %w", path, err))
			return
		}

		fonts := make(map[string]*pdf.Font)
		for i := 1; i <= n; i++ {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			text, err := pageText(r, i, fonts)
			if err != nil {
				yield("", fmt.Errorf("%s page %d: %w", path, i, err))
				return
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

type closer interface{ Close() error }

func openPDF(path string) (c closer, r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: malformed pdf: %v", path, p)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	return f, r, nil
}

func numPages(r *pdf.Reader) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed page tree: %v", p)
		}
	}()
	return r.NumPage(), nil
}

func pageText(r *pdf.Reader, num int, fonts map[string]*pdf.Font) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed page: %v", p)
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return "", nil
	}
	for _, name := range p.Fonts() {
		if _, ok := fonts[name]; !ok {
			font := p.Font(name)
			fonts[name] = &font
		}
	}
	return p.GetPlainText(fonts)
}
