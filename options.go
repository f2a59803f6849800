package sevenzip

import (
	"github.com/go7zip/sevenzip/blockgraph"
	"github.com/go7zip/sevenzip/coder"
)

// ReaderOptions configures how an archive is opened, in the functional-
// option style the teacher's register.go already uses for its
// ReaderOptions.Password().
type ReaderOptions struct {
	password  string
	maxMemKiB uint64
}

// ReaderOption configures a ReaderOptions value.
type ReaderOption func(*ReaderOptions)

// WithPassword supplies the password used to decrypt AES-256/SHA-256
// blocks. An empty password (the default) means "no password"; an I/O
// error decoding an encrypted block is only re-tagged MaybeBadPassword
// when this was non-empty (spec.md §7).
func WithPassword(password string) ReaderOption {
	return func(ro *ReaderOptions) { ro.password = password }
}

// WithMaxMemory bounds the memory a single coder instance (PPMd7, LZMA2)
// may allocate, in KiB. Zero (the default) means unlimited.
func WithMaxMemory(kib uint64) ReaderOption {
	return func(ro *ReaderOptions) { ro.maxMemKiB = kib }
}

// Password returns the configured password, or "" if none was set.
func (ro *ReaderOptions) Password() string {
	if ro == nil {
		return ""
	}
	return ro.password
}

func newReaderOptions(opts []ReaderOption) *ReaderOptions {
	ro := &ReaderOptions{}
	for _, opt := range opts {
		opt(ro)
	}
	return ro
}

// WriterOptions configures how new entries are packed and the header is
// finalized.
type WriterOptions struct {
	methods       []blockgraph.ChainStage
	solid         bool
	encryptHeader bool
	headerPassword string
}

// WriterOption configures a WriterOptions value.
type WriterOption func(*WriterOptions)

// WithContentMethods sets the coder chain applied to each pushed entry's
// content, outermost (applied first) stage listed first — e.g.
// []blockgraph.ChainStage{{Method: coder.Lzma2}} or
// []blockgraph.ChainStage{{Method: coder.BcjX86}, {Method: coder.Lzma2}}.
func WithContentMethods(stages []blockgraph.ChainStage) WriterOption {
	return func(wo *WriterOptions) { wo.methods = stages }
}

// WithSolid controls whether PushArchiveEntries packs its whole batch into
// one block (true, the default) or one block per entry (false).
func WithSolid(solid bool) WriterOption {
	return func(wo *WriterOptions) { wo.solid = solid }
}

// WithEncryptedHeader adds an AES-256/SHA-256 stage keyed by password to
// the chain that encodes the main header (spec.md §4.8). The header is
// written encrypted only when the encoded form is kept, i.e. when the chain
// builds and saves more than headerShrinkMargin bytes; otherwise it is
// written in the clear.
func WithEncryptedHeader(password string) WriterOption {
	return func(wo *WriterOptions) {
		wo.encryptHeader = true
		wo.headerPassword = password
	}
}

func newWriterOptions(opts []WriterOption) *WriterOptions {
	wo := &WriterOptions{
		methods: []blockgraph.ChainStage{{Method: coder.Lzma2}},
		solid:   true,
	}
	for _, opt := range opts {
		opt(wo)
	}
	return wo
}
