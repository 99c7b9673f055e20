// Package bsa reads Bethesda Softworks Archive containers (versions 103, 104
// and 105), enough to look up and extract script entries by file name.
package bsa

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pierrec/lz4/v4"
)

var ErrUnsupportedArchive = errors.New("unsupported archive format")

const (
	headerSize = 36

	versionOblivion = 103
	versionSkyrim   = 104
	versionSSE      = 105

	flagIncludeDirNames   = 0x1
	flagIncludeFileNames  = 0x2
	flagCompressedArchive = 0x4
	flagEmbeddedNames     = 0x100

	// Bit 30 of a file record's size field inverts the archive-wide
	// compression default for that one file.
	sizeCompressionToggle = 1 << 30
)

var magic = [4]byte{'B', 'S', 'A', 0}
var ba2Magic = [4]byte{'B', 'T', 'D', 'X'}

type header struct {
	Magic              [4]byte
	Version            uint32
	RecordsOffset      uint32
	ArchiveFlags       uint32
	FolderCount        uint32
	FileCount          uint32
	TotalFolderNameLen uint32
	TotalFileNameLen   uint32
	FileFlags          uint32
}

type folderRecord struct {
	Hash   uint64
	Count  uint32
	Offset uint32
}

type folderRecordSSE struct {
	Hash   uint64
	Count  uint32
	_      uint32
	Offset uint64
}

type fileRecord struct {
	Hash   uint64
	Size   uint32
	Offset uint32
}

type entry struct {
	name   string
	folder string
	size   uint32
	offset uint32
}

// Reader exposes the contents of one archive. Metadata is parsed up front;
// file data is read on demand through the underlying ReaderAt, so a Reader is
// safe for concurrent Extract calls.
type Reader struct {
	ra      io.ReaderAt
	closer  io.Closer
	name    string
	version uint32
	flags   uint32
	entries map[string]entry
}

// Open parses the archive metadata at path and keeps the file handle open for
// later extraction.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	r, err := NewReader(f, info.Size(), filepath.Base(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read archive %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader parses archive metadata from an arbitrary ReaderAt of the given
// size.
func NewReader(ra io.ReaderAt, size int64, name string) (*Reader, error) {
	br := bufio.NewReader(io.NewSectionReader(ra, 0, size))

	var hdr header
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if hdr.Magic == ba2Magic {
		return nil, fmt.Errorf("%w: BA2 archives are not readable as BSA", ErrUnsupportedArchive)
	}
	if hdr.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrUnsupportedArchive, hdr.Magic[:])
	}
	switch hdr.Version {
	case versionOblivion, versionSkyrim, versionSSE:
	default:
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedArchive, hdr.Version)
	}
	if hdr.RecordsOffset != headerSize {
		return nil, fmt.Errorf("unexpected folder records offset %d", hdr.RecordsOffset)
	}
	if hdr.ArchiveFlags&flagIncludeFileNames == 0 {
		return nil, fmt.Errorf("archive %s carries no file name table", name)
	}

	counts, err := readFolderCounts(br, hdr)
	if err != nil {
		return nil, err
	}

	ordered, err := readFileRecords(br, hdr, counts)
	if err != nil {
		return nil, err
	}

	if err := assignNames(br, hdr, ordered); err != nil {
		return nil, err
	}

	entries := make(map[string]entry, len(ordered))
	for _, e := range ordered {
		key := strings.ToLower(e.name)
		if _, ok := entries[key]; !ok {
			entries[key] = *e
		}
	}

	return &Reader{
		ra:      ra,
		name:    name,
		version: hdr.Version,
		flags:   hdr.ArchiveFlags,
		entries: entries,
	}, nil
}

// readFolderCounts consumes the folder record table and returns the per-folder
// file counts in record order. Hashes and stored offsets are not needed: the
// file record blocks that follow are contiguous and read sequentially.
func readFolderCounts(br *bufio.Reader, hdr header) ([]uint32, error) {
	counts := make([]uint32, hdr.FolderCount)
	for i := range counts {
		if hdr.Version == versionSSE {
			var rec folderRecordSSE
			if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
				return nil, fmt.Errorf("failed to read folder record %d: %w", i, err)
			}
			counts[i] = rec.Count
		} else {
			var rec folderRecord
			if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
				return nil, fmt.Errorf("failed to read folder record %d: %w", i, err)
			}
			counts[i] = rec.Count
		}
	}
	return counts, nil
}

func readFileRecords(br *bufio.Reader, hdr header, counts []uint32) ([]*entry, error) {
	var ordered []*entry
	for i, count := range counts {
		folder := ""
		if hdr.ArchiveFlags&flagIncludeDirNames != 0 {
			var err error
			folder, err = readBzstring(br)
			if err != nil {
				return nil, fmt.Errorf("failed to read folder name %d: %w", i, err)
			}
		}
		for j := uint32(0); j < count; j++ {
			var rec fileRecord
			if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
				return nil, fmt.Errorf("failed to read file record %d/%d: %w", i, j, err)
			}
			ordered = append(ordered, &entry{
				folder: folder,
				size:   rec.Size,
				offset: rec.Offset,
			})
		}
	}
	return ordered, nil
}

// assignNames reads the trailing file name block (fileCount null-terminated
// strings) and attaches the names to entries in record order.
func assignNames(br *bufio.Reader, hdr header, ordered []*entry) error {
	block := make([]byte, hdr.TotalFileNameLen)
	if _, err := io.ReadFull(br, block); err != nil {
		return fmt.Errorf("failed to read file name block: %w", err)
	}

	names := bytes.Split(block, []byte{0})
	if len(names) < len(ordered) {
		return fmt.Errorf("file name table holds %d names, expected %d", len(names), len(ordered))
	}
	for i, e := range ordered {
		e.name = string(names[i])
	}
	return nil
}

// readBzstring reads a length-prefixed, null-terminated name. The length byte
// counts the terminator.
func readBzstring(br *bufio.Reader) (string, error) {
	n, err := br.ReadByte()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf, "\x00")), nil
}

func (r *Reader) Name() string {
	return r.name
}

// Contains reports whether the archive holds an entry with the given base
// name, case-insensitively.
func (r *Reader) Contains(name string) bool {
	_, ok := r.entries[strings.ToLower(name)]
	return ok
}

// Entries returns the base names of all entries with the given extension,
// sorted.
func (r *Reader) Entries(ext string) []string {
	var names []string
	for _, e := range r.entries {
		if strings.EqualFold(filepath.Ext(e.name), ext) {
			names = append(names, e.name)
		}
	}
	sort.Strings(names)
	return names
}

// Extract returns the decompressed bytes of the named entry.
func (r *Reader) Extract(name string) ([]byte, error) {
	e, ok := r.entries[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%s: no entry %q", r.name, name)
	}

	size := e.size &^ uint32(sizeCompressionToggle)
	compressed := r.flags&flagCompressedArchive != 0
	if e.size&sizeCompressionToggle != 0 {
		compressed = !compressed
	}

	br := bufio.NewReader(io.NewSectionReader(r.ra, int64(e.offset), int64(size)))

	if r.flags&flagEmbeddedNames != 0 && r.version >= versionSkyrim {
		// bstring path prefix: one length byte, no terminator.
		n, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read embedded name of %q: %w", r.name, name, err)
		}
		if _, err := io.CopyN(io.Discard, br, int64(n)); err != nil {
			return nil, fmt.Errorf("%s: failed to skip embedded name of %q: %w", r.name, name, err)
		}
	}

	if !compressed {
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read %q: %w", r.name, name, err)
		}
		return data, nil
	}

	var origSize uint32
	if err := binary.Read(br, binary.LittleEndian, &origSize); err != nil {
		return nil, fmt.Errorf("%s: failed to read original size of %q: %w", r.name, name, err)
	}

	var stream io.Reader
	if r.version == versionSSE {
		stream = lz4.NewReader(br)
	} else {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to open zlib stream of %q: %w", r.name, name, err)
		}
		defer zr.Close()
		stream = zr
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to decompress %q: %w", r.name, name, err)
	}
	if uint32(len(data)) != origSize {
		return nil, fmt.Errorf("%s: decompressed %q to %d bytes, expected %d", r.name, name, len(data), origSize)
	}
	return data, nil
}

func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
