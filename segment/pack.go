package segment

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Pack re-cuts paragraphs so that every chunk but the last has a rune length
// within [min, max]. max <= 0 disables the upper bound. Paragraphs shorter
// than min are merged with their successors; paragraphs longer than max are
// cut at sentence ends where possible, else at word boundaries. A word is
// split only when it is longer than max or when the chunk in progress would
// otherwise be closed below min.
func Pack(paragraphs []string, min, max int) []string {
	chunks := pack(paragraphs, min, max)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.text)
	}
	return out
}

// pos locates a word: the paragraph it came from and whether it opens that
// paragraph.
type pos struct {
	para int
	head bool
}

// chunk is one packed piece of text and the position of its first word.
type chunk struct {
	text  string
	start pos
}

func pack(paragraphs []string, min, max int) []chunk {
	p := &packer{min: min, max: max}
	for i, para := range paragraphs {
		for j, w := range strings.Fields(para) {
			p.add(w, pos{para: i, head: j == 0})
		}
		p.endParagraph()
	}
	p.close()
	return p.out
}

type packer struct {
	min, max int

	words   []string
	origins []pos
	n       int // rune length of the words joined by single spaces
	sentEnd int // words[:sentEnd] ends a sentence, 0 if none
	out     []chunk
}

func (p *packer) add(w string, at pos) {
	for w != "" {
		wl := utf8.RuneCountInString(w)
		if len(p.words) == 0 {
			if p.max > 0 && wl > p.max {
				head, tail := splitRunes(w, p.max)
				p.push(head, at)
				p.close()
				w, at.head = tail, false
				continue
			}
			p.push(w, at)
			return
		}
		if p.max <= 0 || p.n+1+wl <= p.max {
			p.push(w, at)
			return
		}
		if p.n >= p.min {
			p.closeAtSentence()
			continue
		}
		room := p.max - p.n - 1
		if room <= 0 {
			// Only reachable when min == max.
			p.close()
			continue
		}
		head, tail := splitRunes(w, room)
		p.push(head, at)
		p.close()
		w, at.head = tail, false
	}
}

func (p *packer) push(w string, at pos) {
	if len(p.words) > 0 {
		p.n++
	}
	p.words = append(p.words, w)
	p.origins = append(p.origins, at)
	p.n += utf8.RuneCountInString(w)
	if endsSentence(w) {
		p.sentEnd = len(p.words)
	}
}

func (p *packer) endParagraph() {
	if len(p.words) > 0 && p.n >= p.min {
		p.close()
	}
}

func (p *packer) close() {
	if len(p.words) == 0 {
		return
	}
	p.out = append(p.out, chunk{text: strings.Join(p.words, " "), start: p.origins[0]})
	p.reset()
}

// closeAtSentence emits the words up to the last sentence end, keeping the
// rest for the next chunk, when that prefix is long enough on its own.
func (p *packer) closeAtSentence() {
	k := p.sentEnd
	if k == 0 || k >= len(p.words) {
		p.close()
		return
	}
	head := strings.Join(p.words[:k], " ")
	if utf8.RuneCountInString(head) < p.min {
		p.close()
		return
	}
	rest := slices.Clone(p.words[k:])
	restAt := slices.Clone(p.origins[k:])
	p.out = append(p.out, chunk{text: head, start: p.origins[0]})
	p.reset()
	for i, w := range rest {
		p.push(w, restAt[i])
	}
}

func (p *packer) reset() {
	p.words = p.words[:0]
	p.origins = p.origins[:0]
	p.n = 0
	p.sentEnd = 0
}

func endsSentence(w string) bool {
	w = strings.TrimRight(w, `"')]”’`)
	if w == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(w)
	return r == '.' || r == '!' || r == '?'
}

func splitRunes(s string, n int) (head, tail string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
