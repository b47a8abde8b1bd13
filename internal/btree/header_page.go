package btree

import (
	"github.com/novasql/corestore/internal/bufferpool"
	"github.com/novasql/corestore/pkg/bx"
)

// headerRecord is one (index name -> root page id) mapping on the header
// page.
type headerRecord struct {
	name       string
	rootPageID int32
}

// decodeHeaderPage parses the reserved header page's record list: a u16
// count, then for each record a u16 name length, the name bytes, and an i32
// root page id.
func decodeHeaderPage(buf []byte) []headerRecord {
	count := bx.U16At(buf, 0)
	records := make([]headerRecord, 0, count)
	off := 2
	for i := 0; i < int(count); i++ {
		nameLen := int(bx.U16At(buf, off))
		off += 2
		name := string(buf[off : off+nameLen])
		off += nameLen
		rootPageID := bx.I32At(buf, off)
		off += 4
		records = append(records, headerRecord{name: name, rootPageID: rootPageID})
	}
	return records
}

func encodeHeaderPage(buf []byte, records []headerRecord) {
	for i := range buf {
		buf[i] = 0
	}
	bx.PutU16At(buf, 0, uint16(len(records)))
	off := 2
	for _, r := range records {
		bx.PutU16At(buf, off, uint16(len(r.name)))
		off += 2
		copy(buf[off:], r.name)
		off += len(r.name)
		bx.PutI32At(buf, off, r.rootPageID)
		off += 4
	}
}

// getRootPageID looks up indexName's root page id on the header page. The
// second return value is false when no record exists yet.
func getRootPageID(bpm *bufferpool.Manager, indexName string) (int32, bool, error) {
	f, err := bpm.FetchPage(bufferpool.HeaderPageID)
	if err != nil {
		return 0, false, err
	}
	defer bpm.UnpinPage(bufferpool.HeaderPageID, false)

	for _, r := range decodeHeaderPage(f.Data) {
		if r.name == indexName {
			return r.rootPageID, true, nil
		}
	}
	return 0, false, nil
}

// updateRootPageID inserts a new record (insertRecord true) or updates the
// existing one for indexName to rootPageID.
func updateRootPageID(bpm *bufferpool.Manager, indexName string, rootPageID int32, insertRecord bool) error {
	f, err := bpm.FetchPage(bufferpool.HeaderPageID)
	if err != nil {
		return err
	}

	records := decodeHeaderPage(f.Data)
	if insertRecord {
		records = append(records, headerRecord{name: indexName, rootPageID: rootPageID})
	} else {
		for i := range records {
			if records[i].name == indexName {
				records[i].rootPageID = rootPageID
				break
			}
		}
	}

	encodeHeaderPage(f.Data, records)
	bpm.UnpinPage(bufferpool.HeaderPageID, true)
	return nil
}
