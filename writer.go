package sevenzip

import (
	"bytes"
	"crypto/aes"
	"crypto/rand"
	"hash"
	"hash/crc32"
	"io"
	"time"

	"github.com/go7zip/sevenzip/blockgraph"
	"github.com/go7zip/sevenzip/coder"
	"github.com/go7zip/sevenzip/header"
)

// headerAESCyclesPower is the SHA-256 stretching round count (as a power of
// two) used for WithEncryptedHeader, matching the default 7-Zip itself uses
// for newly written archives.
const headerAESCyclesPower = 19

// headerShrinkMargin is the spec.md §4.8 encoded-header heuristic: wrap the
// header in a one-block EncodedHeader only when doing so saves more than
// this many bytes over writing it in the clear.
const headerShrinkMargin = 20

// PendingEntry is one file (or directory/empty-file/anti-file) queued for
// writing. Content is nil for entries with no data stream.
type PendingEntry struct {
	Name       string
	ModifiedAt time.Time
	Attrib     uint32
	IsDir      bool
	IsAnti     bool
	Content    io.Reader
}

// Writer builds a 7z archive. Content is buffered internally as it's
// pushed so the signature header (which must precede everything else in
// the file and depends on the final header's size/offset/CRC) can be
// written in one pass at Close, without requiring the destination to
// support seeking.
type Writer struct {
	w    io.Writer
	opts *WriterOptions

	pack bytes.Buffer

	files     []*header.FileInfo
	folders   []*header.Folder
	packSizes []uint64
	numUnpack []int
	subSizes  []uint64
	subCRCs   []uint32

	closed bool
}

// NewWriter creates a Writer that streams a new archive to w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	return &Writer{w: w, opts: newWriterOptions(opts)}
}

// PushArchiveEntry queues a single entry.
func (wr *Writer) PushArchiveEntry(e *PendingEntry) error {
	return wr.PushArchiveEntries([]*PendingEntry{e})
}

// PushArchiveEntries queues a batch of entries. When the writer was built
// WithSolid (the default), every entry in entries that carries Content is
// packed into a single block; otherwise each gets its own block. Entries
// are always recorded in FilesInfo in the order given.
func (wr *Writer) PushArchiveEntries(entries []*PendingEntry) error {
	if wr.closed {
		return errOther("writer is closed")
	}

	var withContent []*PendingEntry
	for _, e := range entries {
		fi := &header.FileInfo{Name: e.Name, Attrib: e.Attrib, ModifiedAt: e.ModifiedAt}
		if e.Content == nil {
			fi.IsEmptyStream = true
			fi.IsEmptyFile = !e.IsDir
			fi.IsAntiFile = e.IsAnti
			wr.files = append(wr.files, fi)
			continue
		}
		wr.files = append(wr.files, fi)
		withContent = append(withContent, e)
	}

	if len(withContent) == 0 {
		return nil
	}

	if wr.opts.solid {
		return wr.writeBlock(withContent)
	}
	for _, e := range withContent {
		if err := wr.writeBlock([]*PendingEntry{e}); err != nil {
			return err
		}
	}
	return nil
}

// writeBlock encodes entries (all of which have non-nil Content) as a
// single block through the writer's configured coder chain, appending one
// Folder and its substream bookkeeping.
func (wr *Writer) writeBlock(entries []*PendingEntry) error {
	packStart := wr.pack.Len()

	chain, err := blockgraph.BuildEncoderChain(&wr.pack, wr.opts.methods)
	if err != nil {
		return err
	}

	blockCRC := crc32.NewIEEE()
	subSizes := make([]uint64, len(entries))
	subCRCs := make([]uint32, len(entries))

	for i, e := range entries {
		entryCRC := &countingCRC{crc: crc32.NewIEEE()}
		if _, err := io.Copy(io.MultiWriter(chain.Writer, blockCRC, entryCRC), e.Content); err != nil {
			return errIo(e.Name, err)
		}
		subSizes[i] = uint64(entryCRC.n)
		subCRCs[i] = entryCRC.crc.Sum32()
	}

	if err := chain.Close(); err != nil {
		return err
	}

	folder := chain.Folder(blockCRC.Sum32())

	wr.folders = append(wr.folders, folder)
	wr.packSizes = append(wr.packSizes, uint64(wr.pack.Len()-packStart))
	wr.numUnpack = append(wr.numUnpack, len(entries))
	wr.subSizes = append(wr.subSizes, subSizes...)
	wr.subCRCs = append(wr.subCRCs, subCRCs...)
	return nil
}

// filteredDigests builds the substream CRC array in the shape
// header.ReadSubStreamsInfo/WriteSubStreamsInfo expect: a folder whose
// single substream's CRC already lives in folder.UnpackCRC (n==1 and
// UnpackCRC != 0) contributes no entry at all, matching buildStreamMap's
// mirror-image logic on the read side.
func (wr *Writer) filteredDigests() []uint32 {
	var digests []uint32
	pos := 0
	for i, folder := range wr.folders {
		n := wr.numUnpack[i]
		needsDigests := n > 1 || folder.UnpackCRC == 0
		if needsDigests {
			digests = append(digests, wr.subCRCs[pos:pos+n]...)
		}
		pos += n
	}
	return digests
}

// countingCRC is an io.Writer that only tallies a running CRC32 and byte
// count; used to capture one entry's digest while it's also being written
// into the shared block-wide encode chain.
type countingCRC struct {
	crc hash.Hash32
	n   int64
}

func (c *countingCRC) Write(p []byte) (int, error) {
	c.crc.Write(p)
	c.n += int64(len(p))
	return len(p), nil
}

// Close finalizes the archive: writes the buffered pack data, the main
// header (optionally compressed and/or encrypted per spec.md §4.8), and
// the signature header, to w.
func (wr *Writer) Close() error {
	if wr.closed {
		return nil
	}
	wr.closed = true

	h := &header.Header{FilesInfo: wr.files}
	if len(wr.folders) > 0 {
		h.MainStreamsInfo = &header.StreamsInfo{
			PackInfo:   &header.PackInfo{PackPos: 0, PackSizes: wr.packSizes},
			UnpackInfo: &header.UnpackInfo{Folders: wr.folders},
			SubStreamsInfo: &header.SubStreamsInfo{
				NumUnpackStreamsInFolders: wr.numUnpack,
				UnpackSizes:               wr.subSizes,
				Digests:                   wr.filteredDigests(),
			},
		}
	}

	var rawHeader bytes.Buffer
	if err := header.WriteHeader(&rawHeader, h); err != nil {
		return err
	}

	finalHeader, err := wr.finalizeHeader(rawHeader.Bytes())
	if err != nil {
		return err
	}

	sig := &header.SignatureHeader{}
	sig.ArchiveVersion.Major = 0
	sig.ArchiveVersion.Minor = 2
	sig.StartHeader.NextHeaderOffset = int64(wr.pack.Len())
	sig.StartHeader.NextHeaderSize = int64(len(finalHeader))
	sig.StartHeader.NextHeaderCRC = crc32.ChecksumIEEE(finalHeader)

	if err := header.WriteSignatureHeader(wr.w, sig); err != nil {
		return err
	}
	if _, err := wr.w.Write(wr.pack.Bytes()); err != nil {
		return err
	}
	_, err = wr.w.Write(finalHeader)
	return err
}

// finalizeHeader applies spec.md §4.8's "wrap in an EncodedHeader only if
// it actually shrinks things" rule: rawHeader (a complete k7zHeader...k7zEnd
// record) is compressed with the writer's content coder chain (and
// encrypted, if WithEncryptedHeader was used). The compressed bytes, if
// used, are appended to the pack region right after the main content so
// its PackInfo.PackPos can reference them the same way the main
// StreamsInfo references pack data; the wrapped k7zEncodedHeader record is
// kept only if its total wire size (record + packed bytes) undercuts
// rawHeader's size by more than headerShrinkMargin bytes.
func (wr *Writer) finalizeHeader(rawHeader []byte) ([]byte, error) {
	methods := wr.opts.methods
	if wr.opts.encryptHeader {
		salt := make([]byte, aes.BlockSize)
		iv := make([]byte, aes.BlockSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		if _, err := rand.Read(iv); err != nil {
			return nil, err
		}

		methods = append(append([]blockgraph.ChainStage{}, methods...), blockgraph.ChainStage{
			Method: coder.Aes256Sha256,
			Config: coder.CoderConfig{
				Password:       wr.opts.headerPassword,
				NumCyclesPower: headerAESCyclesPower,
				Salt:           salt,
				IV:             iv,
			},
		})
	}

	var packed bytes.Buffer
	chain, err := blockgraph.BuildEncoderChain(&packed, methods)
	if err != nil {
		return rawHeader, nil
	}

	crc := crc32.NewIEEE()
	if _, err := io.Copy(io.MultiWriter(chain.Writer, crc), bytes.NewReader(rawHeader)); err != nil {
		return nil, err
	}
	if err := chain.Close(); err != nil {
		return nil, err
	}

	folder := chain.Folder(crc.Sum32())
	si := &header.StreamsInfo{
		PackInfo:   &header.PackInfo{PackPos: uint64(wr.pack.Len()), PackSizes: []uint64{uint64(packed.Len())}},
		UnpackInfo: &header.UnpackInfo{Folders: []*header.Folder{folder}},
	}

	var encodedRecord bytes.Buffer
	if err := header.WriteEncodedHeader(&encodedRecord, si); err != nil {
		return nil, err
	}

	if encodedRecord.Len()+packed.Len() >= len(rawHeader)-headerShrinkMargin {
		return rawHeader, nil
	}

	wr.pack.Write(packed.Bytes())
	return encodedRecord.Bytes(), nil
}
