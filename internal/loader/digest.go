package loader

import (
	"encoding/hex"
	"hash"

	"github.com/cellcount/cellcount/internal/source"
	"github.com/spaolacci/murmur3"
)

// digest fingerprints the record stream so two loads of the same export can
// be recognized from their summaries.
type digest struct {
	h hash.Hash
}

func newDigest() *digest {
	return &digest{h: murmur3.New128()}
}

const (
	unitSep   = 0x1f
	recordSep = 0x1e
)

func (d *digest) add(rec source.Record) {
	for i, col := range source.RequiredColumns {
		if i > 0 {
			d.h.Write([]byte{unitSep})
		}
		d.h.Write([]byte(rec.Get(col)))
	}
	d.h.Write([]byte{recordSep})
}

func (d *digest) String() string {
	return hex.EncodeToString(d.h.Sum(nil))
}
