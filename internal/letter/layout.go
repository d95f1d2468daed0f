package letter

import "strings"

// Line is one rendered text line. Blank lines are vertical spacers.
type Line struct {
	Text  string
	Bold  bool
	Blank bool
}

// Splitter breaks text into lines no wider than maxWidth.
type Splitter func(text string, maxWidth float64) []string

// Lines flattens a letter into lines produced by split. Runs of whitespace inside a
// paragraph are collapsed before splitting.
func (l Letter) Lines(split Splitter, maxWidth float64) []Line {
	var out []Line
	block := func(lines []string, bold bool) {
		for _, line := range lines {
			text := strings.Join(strings.Fields(line), " ")
			if text == "" {
				out = append(out, Line{Blank: true})
				continue
			}
			for _, wrapped := range split(text, maxWidth) {
				out = append(out, Line{Text: wrapped, Bold: bold})
			}
		}
		out = append(out, Line{Blank: true})
	}

	block(l.Sender, false)
	block([]string{l.Date}, false)
	block(l.Recipient, false)
	block([]string{l.Subject}, true)
	block([]string{l.Salutation}, false)
	for _, p := range l.Body {
		block([]string{p}, false)
	}
	block(l.Closing, false)

	return trimTrailingBlanks(out)
}

// Map returns a copy of l with fn applied to every text field.
func (l Letter) Map(fn func(string) string) Letter {
	each := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = fn(s)
		}
		return out
	}
	return Letter{
		Sender:     each(l.Sender),
		Date:       fn(l.Date),
		Recipient:  each(l.Recipient),
		Subject:    fn(l.Subject),
		Salutation: fn(l.Salutation),
		Body:       each(l.Body),
		Closing:    each(l.Closing),
	}
}

// Paginate assigns lines to pages holding at most perPage lines. A line that does not
// fit on the current page starts the next one, and blank spacers are never carried
// to the top of a new page.
func Paginate(lines []Line, perPage int) [][]Line {
	if perPage < 1 {
		perPage = 1
	}

	var pages [][]Line
	var page []Line
	for _, line := range lines {
		if len(page) == perPage {
			pages = append(pages, trimTrailingBlanks(page))
			page = nil
		}
		if line.Blank && len(page) == 0 {
			continue
		}
		page = append(page, line)
	}
	if len(page) > 0 {
		pages = append(pages, trimTrailingBlanks(page))
	}
	if len(pages) == 0 {
		pages = append(pages, nil)
	}
	return pages
}

func trimTrailingBlanks(lines []Line) []Line {
	for len(lines) > 0 && lines[len(lines)-1].Blank {
		lines = lines[:len(lines)-1]
	}
	return lines
}
