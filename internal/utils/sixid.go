package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixID is the 6-byte document identifier used across all collections.
// It is stored in MongoDB as BinData with custom subtype 0x80 and rendered
// to clients as Crockford Base32.
type SixID [6]byte

// SixIDHookFunc is the signature for the NewSixID test hook.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook lets tests make ID generation deterministic.
var NewSixIDHook SixIDHookFunc

// NewSixID creates a new random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		for i := range id {
			id[i] = 0
		}
	}
	return id
}

// ParseSixID parses the Crockford Base32 string representation of a SixID.
func ParseSixID(s string) (SixID, error) {
	return parseCrockfordSixID(s)
}

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap map[byte]byte

func init() {
	crockfordDecodeMap = make(map[byte]byte, 32)
	for i := range crockfordAlphabet {
		crockfordDecodeMap[crockfordAlphabet[i]] = byte(i)
	}

	lower := strings.ToLower(crockfordAlphabet)
	for i := range lower {
		if i >= 10 {
			crockfordDecodeMap[lower[i]] = byte(i)
		}
	}

	// Commonly confused characters
	crockfordDecodeMap['o'] = crockfordDecodeMap['O']
	crockfordDecodeMap['i'] = crockfordDecodeMap['1']
	crockfordDecodeMap['l'] = crockfordDecodeMap['1']
}

// String returns the Crockford Base32 (uppercase) representation.
func (u SixID) String() string {
	// 6 bytes = 48 bits = 10 Base32 characters
	result := make([]byte, 10)
	var bits, offset uint
	resultIndex := 0

	for i := 0; i < 6; i++ {
		bits |= uint(u[i]) << offset
		offset += 8

		for offset >= 5 {
			result[resultIndex] = crockfordAlphabet[bits&0x1F]
			resultIndex++
			bits >>= 5
			offset -= 5
		}
	}

	if offset > 0 {
		result[resultIndex] = crockfordAlphabet[bits&0x1F]
		resultIndex++
	}

	return string(result[:resultIndex])
}

func parseCrockfordSixID(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}

	// Hyphens and spaces are tolerated for leniency
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")

	if len(s) != 10 {
		return SixID{}, errors.New("invalid SixID: string length must be 10")
	}

	var bits uint64
	var offset uint
	bytes := make([]byte, 6)
	byteIndex := 0

	for i := 0; i < 10; i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return SixID{}, errors.New("invalid character in SixID")
		}

		bits |= uint64(val) << offset
		offset += 5

		for offset >= 8 && byteIndex < 6 {
			bytes[byteIndex] = byte(bits & 0xFF)
			byteIndex++
			bits >>= 8
			offset -= 8
		}
	}

	if byteIndex != 6 {
		return SixID{}, errors.New("invalid SixID: couldn't decode 6 bytes")
	}

	var id SixID
	copy(id[:], bytes)
	return id, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (u SixID) MarshalBinary() ([]byte, error) {
	return u[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (u *SixID) UnmarshalBinary(data []byte) error {
	if len(data) != 6 {
		return errors.New("invalid SixID length")
	}
	copy((*u)[:], data)
	return nil
}

// GetBSON returns the MongoDB representation with custom subtype 0x80.
func (u SixID) GetBSON() (interface{}, error) {
	return primitive.Binary{
		Subtype: 0x80,
		Data:    u[:],
	}, nil
}

// MarshalJSON marshals the SixID as a Crockford Base32 JSON string.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON unmarshals a SixID from a Crockford Base32 JSON string.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// SetBSON implements the bson.Setter interface.
func (u *SixID) SetBSON(raw interface{}) error {
	if raw == nil {
		*u = SixID{}
		return nil
	}

	switch v := raw.(type) {
	case primitive.Binary:
		if v.Subtype == 0x80 && len(v.Data) == 6 {
			copy((*u)[:], v.Data)
			return nil
		}
		*u = SixID{}
		return errors.New("invalid BSON binary data for SixID: incorrect subtype or length")
	default:
		*u = SixID{}
		return errors.New("invalid BSON type for SixID: expected primitive.Binary")
	}
}
