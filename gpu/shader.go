package gpu

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

var ErrMalformedShader = errors.New("malformed SPIR-V")

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// ShaderCode splits a SPIR-V binary into the words a shader module is created
// from.
func ShaderCode(data []byte) ([]uint32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Mark(errors.Newf("%d bytes is not a whole number of words", len(data)), ErrMalformedShader)
	}

	code := make([]uint32, len(data)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(data[i*4:])
	}

	if code[0] != spirvMagic {
		return nil, errors.Mark(errors.Newf("bad magic number %#08x", code[0]), ErrMalformedShader)
	}
	return code, nil
}
