package msgpart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/msg"
	"github.com/dhcgn/msg-partition/partition"
)

// FileSizeUnknown is reported when the message does not record the size of
// an attachment.
const FileSizeUnknown = "unknown"

// AttachmentInfo describes one attachment of a message. Attached messages
// are listed with an empty payload.
type AttachmentInfo struct {
	Filename  string
	Extension string
	FileSize  string
	Payload   []byte
}

// ExtractAttachmentInfo lists the attachments of the message at path. With a
// non-empty outputDir every payload is also written there under its base
// name; existing files are overwritten.
func ExtractAttachmentInfo(path, outputDir string) ([]AttachmentInfo, error) {
	return ExtractAttachmentInfoFrom(partition.Source{Path: path}, outputDir)
}

// ExtractAttachmentInfoFrom is ExtractAttachmentInfo for any source.
func ExtractAttachmentInfoFrom(src partition.Source, outputDir string) ([]AttachmentInfo, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	data, err := src.Bytes()
	if err != nil {
		return nil, err
	}
	m, err := msg.ReadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	infos := attachmentInfos(m)
	if outputDir == "" {
		return infos, nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	for i, info := range infos {
		if m.Attachments[i].Embedded != nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(outputDir, info.Filename), info.Payload, 0o644); err != nil {
			return nil, fmt.Errorf("write attachment %s: %w", info.Filename, err)
		}
	}
	return infos, nil
}

func attachmentInfos(m *msg.Message) []AttachmentInfo {
	infos := make([]AttachmentInfo, 0, len(m.Attachments))
	for i, a := range m.Attachments {
		info := AttachmentInfo{
			Filename:  safeName(a.Name, i),
			Extension: a.Extension,
			FileSize:  FileSizeUnknown,
			Payload:   a.Payload,
		}
		if a.Size >= 0 {
			info.FileSize = strconv.FormatInt(a.Size, 10)
		}
		infos = append(infos, info)
	}
	return infos
}

// safeName reduces an attachment name to a base name that cannot leave its
// directory.
func safeName(name string, idx int) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "" || name == "." || name == "/" || name == ".." {
		return fmt.Sprintf("attachment-%d", idx)
	}
	return name
}

// attachmentElements partitions every attachment of m and relinks the
// results to parentName.
func attachmentElements(m *msg.Message, parentName, parentID string, opts Options) ([]element.Element, error) {
	log := opts.Log()
	dir, err := os.MkdirTemp("", "msg-partition-")
	if err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var out []element.Element
	for i, a := range m.Attachments {
		name := safeName(a.Name, i)

		var els []element.Element
		if a.Embedded != nil {
			if a.Embedded.Encrypted {
				log.Warn(EncryptedWarning,
					zap.String("source", parentName),
					zap.String("attachment", name),
				)
				continue
			}
			embeddedID := uuid.NewSHA1(uuid.MustParse(parentID), []byte(strconv.Itoa(i)+"/"+name)).String()
			els, err = messageElements(a.Embedded, origin{name: name, parentID: embeddedID}, opts)
		} else {
			els, err = partitionPayload(dir, i, name, a.Payload, opts)
		}
		if errors.Is(err, partition.ErrUnsupportedFormat) {
			log.Warn("skipping attachment",
				zap.String("attachment", name),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", name, err)
		}

		for j := range els {
			els[j].Metadata.FileDirectory = ""
			els[j].Metadata.AttachedToFilename = parentName
		}
		out = append(out, els...)
	}
	return out, nil
}

// partitionPayload persists one attachment and hands it to the configured
// partitioner.
func partitionPayload(dir string, idx int, name string, payload []byte, opts Options) ([]element.Element, error) {
	sub := filepath.Join(dir, strconv.Itoa(idx))
	if err := os.Mkdir(sub, 0o700); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	path := filepath.Join(sub, name)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return nil, fmt.Errorf("persist attachment: %w", err)
	}

	subOpts := opts.Options
	subOpts.MetadataFilename = path
	return opts.AttachmentPartitioner.Partition(partition.Source{Path: path}, subOpts)
}
