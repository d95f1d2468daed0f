package letter

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	pageWidthMM  = 215.9
	pageHeightMM = 279.4
	marginMM     = 25.4
	footerMM     = 12.0
	lineHeightMM = 5.6
	fontFamily   = "Times"
	fontSizePt   = 11.5
)

// Rendered is a PDF letter and its page count.
type Rendered struct {
	PDF   []byte
	Pages int
}

// Render lays out l on US Letter pages and writes a PDF. createdAt is stamped into
// the document metadata so identical inputs produce identical output.
func Render(l Letter, createdAt time.Time) (*Rendered, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(createdAt)
	pdf.SetTitle(l.Subject, true)
	pdf.SetFont(fontFamily, "", fontSizePt)

	// Core fonts index glyph widths by cp1252 byte. Carrying each translated byte as
	// one rune lets SplitText measure the text exactly as it is drawn.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	encoded := l.Map(func(s string) string { return byteRunes(tr(s)) })

	usable := pageHeightMM - 2*marginMM - footerMM
	perPage := int(math.Floor(usable / lineHeightMM))
	pages := Paginate(encoded.Lines(pdf.SplitText, pageWidthMM-2*marginMM), perPage)

	for i, lines := range pages {
		pdf.AddPage()
		y := marginMM
		for _, line := range lines {
			y += lineHeightMM
			if line.Blank {
				continue
			}
			style := ""
			if line.Bold {
				style = "B"
			}
			pdf.SetFont(fontFamily, style, fontSizePt)
			pdf.Text(marginMM, y, runeBytes(line.Text))
		}

		pdf.SetFont(fontFamily, "", 9)
		footer := fmt.Sprintf("Page %d of %d", i+1, len(pages))
		pdf.Text(pageWidthMM-marginMM-pdf.GetStringWidth(footer), pageHeightMM-marginMM+footerMM/2, footer)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render letter pdf: %w", err)
	}
	return &Rendered{PDF: buf.Bytes(), Pages: len(pages)}, nil
}

func byteRunes(b string) string {
	out := make([]rune, len(b))
	for i := 0; i < len(b); i++ {
		out[i] = rune(b[i])
	}
	return string(out)
}

func runeBytes(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return string(out)
}
