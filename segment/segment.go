package segment

import (
	"github.com/dhcgn/msg-partition/element"
)

// Options bounds element length. Zero values disable the bounds.
type Options struct {
	MinPartition int
	MaxPartition int
}

// Segment turns body text into ordered elements without metadata. Empty
// paragraphs and bare bullets are dropped. Bullet markers are removed before
// packing, so the bounds apply to the emitted text.
func Segment(text string, opts Options) []element.Element {
	paras := Paragraphs(text)
	kept := make([]string, 0, len(paras))
	bulleted := make([]bool, 0, len(paras))
	for _, para := range paras {
		clean, bullet := stripBullet(para)
		if clean == "" {
			continue
		}
		kept = append(kept, clean)
		bulleted = append(bulleted, bullet)
	}

	chunks := pack(kept, opts.MinPartition, opts.MaxPartition)
	els := make([]element.Element, 0, len(chunks))
	for _, c := range chunks {
		kind := classifyText(c.text)
		if c.start.head && bulleted[c.start.para] {
			kind = element.KindListItem
		}
		els = append(els, element.New(kind, c.text))
	}
	return els
}
