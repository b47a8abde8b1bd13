// Package walshim is a redo-only, non-transactional page-image log: the
// buffer pool can optionally record a page's bytes here before writing a
// dirty victim back to disk, and replay the log to reconstruct lost writes.
// It is not a transactional write-ahead log — there is no begin/commit/abort
// framing, only "this page looked like this at this LSN".
package walshim

import (
	"bufio"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/novasql/corestore/pkg/bx"
)

var (
	ErrBadMagic  = errors.New("walshim: bad magic")
	ErrBadCRC    = errors.New("walshim: bad crc")
	ErrBadRecord = errors.New("walshim: bad record")
	ErrShortRead = errors.New("walshim: short read")
	ErrNoFile    = errors.New("walshim: log file not found")
)

const (
	magicU32   uint32 = 0x4E4F5641 // "NOVA"
	versionU16        = 1

	recPageImage uint8 = 1

	fixedHeaderLen = 4 + 2 + 1 + 1 + 4 + 4 + 8 + 4 // magic,ver,typ,rsv,totalLen,crc,lsn,pageID
)

// PageWriter is the narrow redo target: diskmgr.DiskManager already
// satisfies this.
type PageWriter interface {
	WritePage(pageID int32, pageBytes []byte) error
}

// Writer is an append-only, CRC32-framed page-image log.
type Writer struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	pageSize int
	lsn      uint64
	flushed  uint64
}

// Open creates or reopens the log at dir/wal.log, recovering the last LSN
// seen so newly appended records continue monotonically.
func Open(dir string, pageSize int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "wal.log")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f, path: path, pageSize: pageSize}
	_ = w.initLastLSN()
	return w, nil
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// AppendPageImage logs a full page image for pageID and returns its LSN.
func (w *Writer) AppendPageImage(pageID int32, pageBytes []byte) (uint64, error) {
	if len(pageBytes) != w.pageSize {
		return 0, ErrBadRecord
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return 0, ErrNoFile
	}

	w.lsn++
	lsn := w.lsn

	totalLen := fixedHeaderLen + w.pageSize
	buf := make([]byte, totalLen)
	off := 0

	putU32 := func(v uint32) { bx.PutU32(buf[off:off+4], v); off += 4 }
	putU16 := func(v uint16) { bx.PutU16(buf[off:off+2], v); off += 2 }
	putU64 := func(v uint64) { bx.PutU64(buf[off:off+8], v); off += 8 }
	putU8 := func(v uint8) { buf[off] = v; off++ }

	putU32(magicU32)
	putU16(versionU16)
	putU8(recPageImage)
	putU8(0)
	putU32(uint32(totalLen))

	crcOff := off
	putU32(0) // placeholder

	putU64(lsn)
	putU32(uint32(pageID))
	copy(buf[off:], pageBytes)
	off += w.pageSize

	crc := crc32.ChecksumIEEE(buf[crcOff+4:])
	bx.PutU32(buf[crcOff:crcOff+4], crc)

	if _, err := w.f.Write(buf); err != nil {
		return 0, err
	}
	return lsn, nil
}

// Flush syncs the log to stable storage once upto has been appended.
func (w *Writer) Flush(upto uint64) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	if upto == 0 || upto <= w.flushed {
		return nil
	}
	if err := w.f.Sync(); err != nil {
		return err
	}
	w.flushed = upto
	return nil
}

// Recover replays every page-image record, in order, against writer.
func (w *Writer) Recover(writer PageWriter) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	path := w.path
	w.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 1<<20)
	for {
		rec, err := w.readOne(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrShortRead) {
				return nil
			}
			return err
		}
		if rec.typ != recPageImage {
			continue
		}
		if err := writer.WritePage(rec.pageID, rec.page); err != nil {
			return err
		}
	}
}

type decodedRecord struct {
	typ    uint8
	lsn    uint64
	pageID int32
	page   []byte
}

func (w *Writer) readOne(r *bufio.Reader) (*decodedRecord, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if bx.U32(hdr[:]) != magicU32 {
		return nil, ErrBadMagic
	}

	var verB [2]byte
	if _, err := io.ReadFull(r, verB[:]); err != nil {
		return nil, err
	}
	if bx.U16(verB[:]) != versionU16 {
		return nil, ErrBadRecord
	}

	tp, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadByte(); err != nil { // reserved
		return nil, err
	}

	var lenB [4]byte
	if _, err := io.ReadFull(r, lenB[:]); err != nil {
		return nil, err
	}
	totalLen := bx.U32(lenB[:])
	if int(totalLen) < fixedHeaderLen {
		return nil, ErrBadRecord
	}

	var crcB [4]byte
	if _, err := io.ReadFull(r, crcB[:]); err != nil {
		return nil, err
	}
	wantCRC := bx.U32(crcB[:])

	restLen := int(totalLen) - (4 + 2 + 1 + 1 + 4 + 4)
	rest := make([]byte, restLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrShortRead
		}
		return nil, err
	}
	if crc32.ChecksumIEEE(rest) != wantCRC {
		return nil, ErrBadCRC
	}

	off := 0
	lsn := bx.U64(rest[off : off+8])
	off += 8
	pageID := bx.I32(rest[off : off+4])
	off += 4

	if off+w.pageSize > len(rest) {
		return nil, ErrBadRecord
	}
	page := make([]byte, w.pageSize)
	copy(page, rest[off:off+w.pageSize])

	return &decodedRecord{typ: tp, lsn: lsn, pageID: pageID, page: page}, nil
}

func (w *Writer) initLastLSN() error {
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 1<<20)
	var last uint64
	for {
		rec, err := w.readOne(r)
		if err != nil {
			break
		}
		if rec.lsn > last {
			last = rec.lsn
		}
	}
	if last > 0 {
		w.lsn = last
		w.flushed = last
	}
	return nil
}
