package pagecount

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// pdfFile writes PDF objects with a valid cross-reference table so documents
// parse like real uploads.
type pdfFile struct {
	buf     bytes.Buffer
	offsets map[int]int
	xref    int
}

func newPDF() *pdfFile {
	f := &pdfFile{offsets: make(map[int]int)}
	f.buf.WriteString("%PDF-1.4\n")
	return f
}

func (f *pdfFile) object(num int, body string) {
	f.offsets[num] = f.buf.Len()
	fmt.Fprintf(&f.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// section writes an xref section covering nums, which must be ascending and
// contiguous, and chains it to the previous section when there is one.
func (f *pdfFile) section(size int, nums ...int) {
	prev := f.xref
	f.xref = f.buf.Len()
	f.buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	fmt.Fprintf(&f.buf, "%d %d\n", nums[0], len(nums))
	for _, n := range nums {
		fmt.Fprintf(&f.buf, "%010d 00000 n \n", f.offsets[n])
	}
	f.buf.WriteString("trailer\n<< /Size ")
	f.buf.WriteString(strconv.Itoa(size))
	f.buf.WriteString(" /Root 1 0 R")
	if prev > 0 {
		fmt.Fprintf(&f.buf, " /Prev %d", prev)
	}
	fmt.Fprintf(&f.buf, " >>\nstartxref\n%d\n%%%%EOF\n", f.xref)
}

func page(rotate int) string {
	return fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Rotate %d >>", rotate)
}

func pdfWithPages(n int) *pdfFile {
	f := newPDF()
	kids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i))
	}
	f.object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	nums := []int{1, 2}
	for i := 0; i < n; i++ {
		f.object(3+i, page(0))
		nums = append(nums, 3+i)
	}
	f.section(3+n, nums...)
	return f
}

func docxWithPages(t *testing.T, appXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if appXML != "" {
		w, err := zw.Create("docProps/app.xml")
		require.NoError(t, err)
		_, err = w.Write([]byte(appXML))
		require.NoError(t, err)
	}
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<w:document/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestResolver_PDF(t *testing.T) {
	r := NewResolver(zaptest.NewLogger(t))
	assert.Equal(t, 3, r.Resolve("notes.PDF", pdfWithPages(3).buf.Bytes()))
	assert.Equal(t, 1, r.Resolve("one.pdf", pdfWithPages(1).buf.Bytes()))
}

func TestResolver_PDFIncrementalUpdateCountsPagesOnce(t *testing.T) {
	f := pdfWithPages(2)
	f.object(3, page(90))
	f.section(5, 3)

	data := f.buf.Bytes()
	require.Equal(t, 3, strings.Count(string(data), "/Type /Page "), "page object appears twice in the file")

	r := NewResolver(zaptest.NewLogger(t))
	assert.Equal(t, 2, r.Resolve("amended.pdf", data))
}

func TestResolver_DOCX(t *testing.T) {
	r := NewResolver(zaptest.NewLogger(t))
	data := docxWithPages(t, `<Properties><Pages>7</Pages><Words>900</Words></Properties>`)
	assert.Equal(t, 7, r.Resolve("essay.docx", data))
}

func TestResolver_FallsBackToOne(t *testing.T) {
	r := NewResolver(zaptest.NewLogger(t))
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"unknown_extension", "photo.jpg", []byte{0xff, 0xd8}},
		{"corrupt_pdf", "broken.pdf", []byte("not a pdf")},
		{"corrupt_docx", "broken.docx", []byte("PK?")},
		{"docx_without_metadata", "bare.docx", docxWithPages(t, "")},
		{"empty_pdf", "empty.pdf", pdfWithPages(0).buf.Bytes()},
		{"truncated_pdf", "cut.pdf", pdfWithPages(4).buf.Bytes()[:40]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Fallback, r.Resolve(tt.file, tt.data))
		})
	}
}
