package badger

import (
	"encoding/binary"

	"github.com/poiesic/partners/core"
)

// Key prefixes for different data types
const (
	partnerPrefix    = "ptnr:"
	partnerIDSeq     = "ptnrseq"
	vectorPrefix     = "ptnrvec:"
	postingPrefix    = "ptnrlex:"
	docLengthPrefix  = "ptnrlen:"
	vectorIndexKey   = "ptnrmeta:vector"
	lexicalIndexKey  = "ptnrmeta:lexical"
	postingSeparator = 0x00
)

// appendID appends id in BigEndian order so lexicographic sort follows ID order.
func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// idFromKeySuffix reads the ID stored in the last 8 bytes of key.
func idFromKeySuffix(key []byte) (core.ID, bool) {
	if len(key) < 8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:])), true
}

// makePartnerKey generates a key for a partner record by ID.
// Format: prefix + BE(id)
func makePartnerKey(id core.ID) []byte {
	return appendID([]byte(partnerPrefix), id)
}

// makeVectorKey generates a key for a partner's normalized embedding.
func makeVectorKey(id core.ID) []byte {
	return appendID([]byte(vectorPrefix), id)
}

// makePostingKey generates a composite key for the inverted index.
// Format: prefix + term + 0x00 + BE(id)
func makePostingKey(term string, id core.ID) []byte {
	buf := make([]byte, 0, len(postingPrefix)+len(term)+9)
	buf = append(buf, postingPrefix...)
	buf = append(buf, term...)
	buf = append(buf, postingSeparator)
	return appendID(buf, id)
}

// makePostingScanPrefix returns the prefix shared by all postings of terms
// starting with termPrefix.
func makePostingScanPrefix(termPrefix string) []byte {
	buf := make([]byte, 0, len(postingPrefix)+len(termPrefix))
	buf = append(buf, postingPrefix...)
	return append(buf, termPrefix...)
}

// makeDocLengthKey generates a key holding a partner's token count.
func makeDocLengthKey(id core.ID) []byte {
	return appendID([]byte(docLengthPrefix), id)
}
