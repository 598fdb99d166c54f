package runner

import (
	"github.com/dhcgn/msg-partition/chunking"
	"github.com/dhcgn/msg-partition/config"
	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/filter"
	"github.com/dhcgn/msg-partition/mbox"
	"github.com/dhcgn/msg-partition/msgpart"
	"github.com/dhcgn/msg-partition/partition"
	"github.com/dhcgn/msg-partition/textpart"
)

// NewRouter returns the partitioner for top-level inputs. Attachments are
// routed through a second router in which .msg attachments recurse.
func NewRouter(cfg config.Config, f *filter.Filter) partition.Router {
	attachments := partition.Router{Routes: map[string]partition.Partitioner{
		".txt":  textpart.Partitioner{},
		".text": textpart.Partitioner{},
		".eml":  mbox.EMLPartitioner{},
		".mbox": mbox.ArchivePartitioner{},
	}}
	attachments.Routes[".msg"] = msgpart.Partitioner{Options: msgpart.Options{
		ProcessAttachments:    true,
		AttachmentPartitioner: attachments,
	}}

	strategy, _ := chunking.Lookup(cfg.ChunkingStrategy)
	return partition.Router{Routes: map[string]partition.Partitioner{
		".msg": msgpart.Partitioner{Options: msgpart.Options{
			ProcessAttachments:    cfg.ProcessAttachments,
			AttachmentPartitioner: attachments,
			ChunkingStrategy:      cfg.ChunkingStrategy,
			Filter:                f,
		}},
		".eml":  finishing{Partitioner: mbox.EMLPartitioner{}, filter: f, strategy: strategy},
		".mbox": finishing{Partitioner: mbox.ArchivePartitioner{Filter: f}, strategy: strategy},
		".txt":  finishing{Partitioner: textpart.Partitioner{}, filter: f, strategy: strategy},
	}}
}

// finishing applies the element filter and the chunking strategy after a
// partitioner that does not apply them itself.
type finishing struct {
	partition.Partitioner
	filter   *filter.Filter
	strategy chunking.Strategy
}

func (p finishing) Partition(src partition.Source, opts partition.Options) ([]element.Element, error) {
	els, err := p.Partitioner.Partition(src, opts)
	if err != nil {
		return nil, err
	}
	els = p.filter.Elements(els)
	if p.strategy != nil {
		els = p.strategy(els)
	}
	element.AssignIDs(els)
	return els, nil
}
