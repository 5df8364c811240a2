package textstate_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/ocr-parser-service/internal/textstate"
)

type fakeReader struct {
	err   error
	pages []string
	calls int
}

func (f *fakeReader) PageTexts(_ context.Context, _ string) ([]string, error) {
	f.calls++

	return f.pages, f.err
}

type fakeExec struct {
	run map[string]struct {
		err error
		out []byte
	}
	err error
}

func (f *fakeExec) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	key := name + " " + strings.Join(args, " ")
	if v, ok := f.run[key]; ok {
		return v.out, v.err
	}

	return nil, f.err
}

func (f *fakeExec) RunCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.Run(ctx, name, args...)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		pages    []string
		kind     textstate.Kind
		textless []int
	}{
		{
			name:     "Image only pages are NoText",
			pages:    []string{"", "  \n\t", "\f"},
			kind:     textstate.NoText,
			textless: []int{1, 2, 3},
		},
		{
			name:     "Every page with text is FullText",
			pages:    []string{"page 1", "page 2"},
			kind:     textstate.FullText,
			textless: nil,
		},
		{
			name:     "Some pages with text is MixedText",
			pages:    []string{"", "", "", "page 4", "page 5", "page 6"},
			kind:     textstate.MixedText,
			textless: []int{1, 2, 3},
		},
		{
			name:     "A single character marks a page textual",
			pages:    []string{"x", " "},
			kind:     textstate.MixedText,
			textless: []int{2},
		},
		{
			name:     "Empty document is NoText",
			pages:    nil,
			kind:     textstate.NoText,
			textless: nil,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			classification := textstate.Classify(testCase.pages)
			assert.Equal(t, testCase.kind, classification.Kind)
			assert.Equal(t, testCase.textless, classification.TextlessPages())
			assert.Equal(t, len(testCase.pages), classification.PageCount)
		})
	}
}

func TestClassification_PageAccessors(t *testing.T) {
	t.Parallel()

	classification := textstate.Classify([]string{"", "second page"})

	assert.False(t, classification.PageHasText(1))
	assert.True(t, classification.PageHasText(2))
	assert.False(t, classification.PageHasText(3))
	assert.Equal(t, "second page", classification.PageText(2))
	assert.Empty(t, classification.PageText(0))
	assert.True(t, classification.HasText())
	assert.Equal(t, "\nsecond page", classification.Text())
}

func TestClassify_CopiesInput(t *testing.T) {
	t.Parallel()

	pages := []string{"original"}
	classification := textstate.Classify(pages)
	pages[0] = ""

	assert.Equal(t, "original", classification.PageText(1))
	assert.Equal(t, textstate.FullText, classification.Kind)
}

func TestInspector_Inspect(t *testing.T) {
	t.Parallel()

	t.Run("Non PDF sources are text free", func(t *testing.T) {
		t.Parallel()

		reader := &fakeReader{pages: []string{"unused"}, err: nil, calls: 0}
		inspector := textstate.NewInspector(reader)

		classification, err := inspector.Inspect(context.Background(), "scan.png", "image/png")
		require.NoError(t, err)
		assert.Equal(t, textstate.NoText, classification.Kind)
		assert.Zero(t, classification.PageCount)
		assert.Zero(t, reader.calls)
	})

	t.Run("PDF pages are classified", func(t *testing.T) {
		t.Parallel()

		reader := &fakeReader{pages: []string{"", "text"}, err: nil, calls: 0}
		inspector := textstate.NewInspector(reader)

		classification, err := inspector.Inspect(context.Background(), "doc.pdf", "application/pdf")
		require.NoError(t, err)
		assert.Equal(t, textstate.MixedText, classification.Kind)
		assert.Equal(t, 2, classification.PageCount)
	})

	t.Run("Reader errors are wrapped", func(t *testing.T) {
		t.Parallel()

		readErr := errors.New("corrupt xref")
		inspector := textstate.NewInspector(&fakeReader{pages: nil, err: readErr, calls: 0})

		_, err := inspector.Inspect(context.Background(), "doc.pdf", "application/pdf")
		require.ErrorIs(t, err, readErr)
	})

	t.Run("Zero pages is an error", func(t *testing.T) {
		t.Parallel()

		inspector := textstate.NewInspector(&fakeReader{pages: []string{}, err: nil, calls: 0})

		_, err := inspector.Inspect(context.Background(), "doc.pdf", "application/pdf")
		require.ErrorIs(t, err, textstate.ErrNoPages)
	})

	t.Run("Empty path is rejected", func(t *testing.T) {
		t.Parallel()

		inspector := textstate.NewInspector(&fakeReader{pages: nil, err: nil, calls: 0})

		_, err := inspector.Inspect(context.Background(), "", "application/pdf")
		require.ErrorIs(t, err, textstate.ErrPathRequired)
	})
}

func TestParsePdfInfoOutput(t *testing.T) {
	t.Parallel()

	t.Run("Valid output with pages", func(t *testing.T) {
		t.Parallel()

		output := "Title: Test Doc\nAuthor: Me\nPages: 15\nEncrypted: no"
		pages, err := textstate.ParsePdfInfoOutputForTest(output)
		require.NoError(t, err)
		assert.Equal(t, 15, pages)
	})

	t.Run("Output without pages line", func(t *testing.T) {
		t.Parallel()

		_, err := textstate.ParsePdfInfoOutputForTest("Title: Test Doc\nAuthor: Me")
		assert.Error(t, err)
	})
}

func TestPopplerReader_PageTexts(t *testing.T) {
	t.Parallel()

	pdfPath := filepath.Join("in", "doc.pdf")
	executor := &fakeExec{
		run: map[string]struct {
			err error
			out []byte
		}{
			"pdfinfo " + pdfPath: {out: []byte("Pages: 2\n"), err: nil},
			"pdftotext -q -layout -enc UTF-8 -f 1 -l 1 " + pdfPath + " -": {
				out: []byte("first page\n\f"),
				err: nil,
			},
			"pdftotext -q -layout -enc UTF-8 -f 2 -l 2 " + pdfPath + " -": {
				out: []byte("\f"),
				err: nil,
			},
		},
		err: errors.New("unexpected command"),
	}

	pages, err := textstate.NewPopplerReader(executor).PageTexts(context.Background(), pdfPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"first page\n", ""}, pages)
}

func TestPopplerReader_ZeroPages(t *testing.T) {
	t.Parallel()

	executor := &fakeExec{
		run: map[string]struct {
			err error
			out []byte
		}{
			"pdfinfo doc.pdf": {out: []byte("Pages: 0\n"), err: nil},
		},
		err: nil,
	}

	_, err := textstate.NewPopplerReader(executor).PageTexts(context.Background(), "doc.pdf")
	require.ErrorIs(t, err, textstate.ErrNoPages)
}

func TestLayerReader_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := textstate.NewLayerReader().PageTexts(
		context.Background(),
		filepath.Join(t.TempDir(), "missing.pdf"),
	)
	require.Error(t, err)
}

func TestChainReader(t *testing.T) {
	t.Parallel()

	t.Run("Falls through to the next reader", func(t *testing.T) {
		t.Parallel()

		first := &fakeReader{pages: nil, err: errors.New("library crashed"), calls: 0}
		second := &fakeReader{pages: []string{"text"}, err: nil, calls: 0}

		pages, err := textstate.NewChainReader(first, second).PageTexts(context.Background(), "doc.pdf")
		require.NoError(t, err)
		assert.Equal(t, []string{"text"}, pages)
		assert.Equal(t, 1, first.calls)
		assert.Equal(t, 1, second.calls)
	})

	t.Run("Reports every failure", func(t *testing.T) {
		t.Parallel()

		firstErr := errors.New("first")
		secondErr := errors.New("second")
		chain := textstate.NewChainReader(
			&fakeReader{pages: nil, err: firstErr, calls: 0},
			&fakeReader{pages: nil, err: secondErr, calls: 0},
		)

		_, err := chain.PageTexts(context.Background(), "doc.pdf")
		require.ErrorIs(t, err, textstate.ErrAllReadersFailed)
		require.ErrorIs(t, err, firstErr)
		require.ErrorIs(t, err, secondErr)
	})
}
