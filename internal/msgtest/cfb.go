// Package msgtest writes small compound files and Outlook messages for
// tests.
package msgtest

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"
	"time"
	"unicode/utf16"
)

const (
	sectorSize     = 512
	miniSectorSize = 64
	miniCutoff     = 4096
	dirEntrySize   = 128

	freeSect   = 0xFFFFFFFF
	endOfChain = 0xFFFFFFFE
	fatSect    = 0xFFFFFFFD
	noStream   = 0xFFFFFFFF

	typeStorage = 1
	typeStream  = 2
	typeRoot    = 5

	colorBlack = 1
)

// Node is a storage (Children set) or a stream (Data set) of a compound
// file.
type Node struct {
	Name     string
	Data     []byte
	Children []*Node
	storage  bool
}

// Storage returns a storage node.
func Storage(name string, children ...*Node) *Node {
	return &Node{Name: name, Children: children, storage: true}
}

// Stream returns a stream node.
func Stream(name string, data []byte) *Node {
	return &Node{Name: name, Data: data}
}

type dirEntry struct {
	node               *Node
	typ                byte
	left, right, child uint32
	start              uint32
	size               uint32
}

// WriteCFB serializes a version 3 compound file whose root storage holds
// children. modified is stored as the root modification time.
func WriteCFB(children []*Node, modified time.Time) []byte {
	root := &Node{Name: "Root Entry", Children: children, storage: true}

	var entries []*dirEntry
	var add func(n *Node, typ byte) uint32
	add = func(n *Node, typ byte) uint32 {
		id := uint32(len(entries))
		e := &dirEntry{node: n, typ: typ, left: noStream, right: noStream, child: noStream, start: endOfChain}
		entries = append(entries, e)
		if !n.storage {
			return id
		}
		kids := append([]*Node(nil), n.Children...)
		sort.Slice(kids, func(i, j int) bool { return lessName(kids[i].Name, kids[j].Name) })
		ids := make([]uint32, len(kids))
		for i, k := range kids {
			t := byte(typeStream)
			if k.storage {
				t = typeStorage
			}
			ids[i] = add(k, t)
		}
		e.child = linkTree(entries, ids)
		return id
	}
	add(root, typeRoot)

	// Mini stream for small streams.
	var mini []byte
	var miniFAT []uint32
	var big []*dirEntry
	for _, e := range entries {
		if e.node.storage || len(e.node.Data) == 0 {
			continue
		}
		e.size = uint32(len(e.node.Data))
		if len(e.node.Data) >= miniCutoff {
			big = append(big, e)
			continue
		}
		e.start = uint32(len(miniFAT))
		n := sectors(len(e.node.Data), miniSectorSize)
		miniFAT = appendChain(miniFAT, e.start, n)
		mini = append(mini, pad(e.node.Data, miniSectorSize)...)
	}

	dirSectors := sectors(len(entries)*dirEntrySize, sectorSize)
	miniFATSectors := sectors(len(miniFAT)*4, sectorSize)
	miniSectors := sectors(len(mini), sectorSize)
	dataSectors := dirSectors + miniFATSectors + miniSectors
	for _, e := range big {
		dataSectors += sectors(len(e.node.Data), sectorSize)
	}
	fatSectors := 1
	for fatSectors*sectorSize/4 < fatSectors+dataSectors {
		fatSectors++
	}

	var fat []uint32
	for i := 0; i < fatSectors; i++ {
		fat = append(fat, fatSect)
	}
	var body bytes.Buffer
	place := func(data []byte) uint32 {
		start := uint32(len(fat))
		n := sectors(len(data), sectorSize)
		fat = appendChain(fat, start, n)
		body.Write(pad(data, sectorSize))
		return start
	}

	// Directory is written last since big streams and the mini stream
	// need their start sectors first; reserve its sectors now.
	dirStart := uint32(len(fat))
	fat = appendChain(fat, dirStart, dirSectors)
	body.Write(make([]byte, dirSectors*sectorSize))

	miniFATStart := uint32(endOfChain)
	if len(miniFAT) > 0 {
		for len(miniFAT)%(sectorSize/4) != 0 {
			miniFAT = append(miniFAT, freeSect)
		}
		buf := make([]byte, len(miniFAT)*4)
		for i, v := range miniFAT {
			binary.LittleEndian.PutUint32(buf[i*4:], v)
		}
		miniFATStart = place(buf)
	}
	if len(mini) > 0 {
		entries[0].start = place(mini)
		entries[0].size = uint32(len(mini))
	}
	for _, e := range big {
		e.start = place(e.node.Data)
	}
	for len(fat)%(sectorSize/4) != 0 {
		fat = append(fat, freeSect)
	}

	dir := make([]byte, dirSectors*sectorSize)
	for i := len(entries); i < dirSectors*sectorSize/dirEntrySize; i++ {
		off := i * dirEntrySize
		binary.LittleEndian.PutUint32(dir[off+68:], noStream)
		binary.LittleEndian.PutUint32(dir[off+72:], noStream)
		binary.LittleEndian.PutUint32(dir[off+76:], noStream)
	}
	for i, e := range entries {
		writeDirEntry(dir[i*dirEntrySize:], e, i == 0, modified)
	}
	out := body.Bytes()
	copy(out[:len(dir)], dir)

	var hdr [sectorSize]byte
	copy(hdr[:], []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	binary.LittleEndian.PutUint16(hdr[24:], 0x003E)
	binary.LittleEndian.PutUint16(hdr[26:], 0x0003)
	binary.LittleEndian.PutUint16(hdr[28:], 0xFFFE)
	binary.LittleEndian.PutUint16(hdr[30:], 9)
	binary.LittleEndian.PutUint16(hdr[32:], 6)
	binary.LittleEndian.PutUint32(hdr[44:], uint32(fatSectors))
	binary.LittleEndian.PutUint32(hdr[48:], dirStart)
	binary.LittleEndian.PutUint32(hdr[56:], miniCutoff)
	binary.LittleEndian.PutUint32(hdr[60:], miniFATStart)
	binary.LittleEndian.PutUint32(hdr[64:], uint32(miniFATSectors))
	binary.LittleEndian.PutUint32(hdr[68:], endOfChain)
	for i := 0; i < 109; i++ {
		v := uint32(freeSect)
		if i < fatSectors {
			v = uint32(i)
		}
		binary.LittleEndian.PutUint32(hdr[76+i*4:], v)
	}

	var file bytes.Buffer
	file.Write(hdr[:])
	fatBuf := make([]byte, len(fat)*4)
	for i, v := range fat {
		binary.LittleEndian.PutUint32(fatBuf[i*4:], v)
	}
	file.Write(fatBuf[:fatSectors*sectorSize])
	file.Write(out)
	return file.Bytes()
}

// linkTree arranges sibling ids as a balanced binary tree and returns the
// id of its root.
func linkTree(entries []*dirEntry, ids []uint32) uint32 {
	if len(ids) == 0 {
		return noStream
	}
	mid := len(ids) / 2
	e := entries[ids[mid]]
	e.left = linkTree(entries, ids[:mid])
	e.right = linkTree(entries, ids[mid+1:])
	return ids[mid]
}

// lessName orders directory names: shorter first, then by upper-case code
// units.
func lessName(a, b string) bool {
	ua, ub := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	if len(ua) != len(ub) {
		return len(ua) < len(ub)
	}
	return strings.ToUpper(a) < strings.ToUpper(b)
}

func writeDirEntry(b []byte, e *dirEntry, root bool, modified time.Time) {
	name := utf16.Encode([]rune(e.node.Name))
	if len(name) > 31 {
		name = name[:31]
	}
	for i, c := range name {
		binary.LittleEndian.PutUint16(b[i*2:], c)
	}
	binary.LittleEndian.PutUint16(b[64:], uint16((len(name)+1)*2))
	b[66] = e.typ
	b[67] = colorBlack
	binary.LittleEndian.PutUint32(b[68:], e.left)
	binary.LittleEndian.PutUint32(b[72:], e.right)
	binary.LittleEndian.PutUint32(b[76:], e.child)
	if root && !modified.IsZero() {
		binary.LittleEndian.PutUint64(b[108:], filetime(modified))
	}
	start := e.start
	if e.typ == typeStorage {
		start = 0
	}
	binary.LittleEndian.PutUint32(b[116:], start)
	binary.LittleEndian.PutUint32(b[120:], e.size)
}

func filetime(t time.Time) uint64 {
	return uint64(t.UnixNano()/100) + 116444736000000000
}

func sectors(n, size int) int {
	return (n + size - 1) / size
}

func pad(b []byte, size int) []byte {
	n := sectors(len(b), size) * size
	out := make([]byte, n)
	copy(out, b)
	return out
}

// appendChain appends a chain of n consecutive sectors starting at start.
func appendChain(table []uint32, start uint32, n int) []uint32 {
	for i := 0; i < n; i++ {
		next := start + uint32(i) + 1
		if i == n-1 {
			next = endOfChain
		}
		table = append(table, next)
	}
	return table
}
