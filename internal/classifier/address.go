package classifier

import (
	"strings"

	"github.com/mr-tron/base58"
)

// ss58 envelope: prefix byte + 32-byte public key + 2-byte checksum.
const (
	ss58Length        = 35
	ss58GenericPrefix = 42 // network prefix used by TAO addresses
)

// validSS58Address reports whether addr decodes as an SS58 address with
// the generic network prefix. Checksum verification is out of scope; the
// envelope check is enough to drop garbage provider rows.
func validSS58Address(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return len(raw) == ss58Length && raw[0] == ss58GenericPrefix
}

// validHexAddress reports whether addr looks like a 20-byte EVM address.
func validHexAddress(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	for _, c := range addr[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
