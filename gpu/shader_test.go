package gpu_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/meshes/gpu"
)

func TestShaderCode(t *testing.T) {
	data := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

	code, err := gpu.ShaderCode(data)
	if err != nil {
		t.Fatalf("shader code: %v", err)
	}
	if len(code) != 2 || code[0] != 0x07230203 || code[1] != 0x00010000 {
		t.Errorf("code = %#x", code)
	}
}

func TestShaderCodeMalformed(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "partial word", data: []byte{0x03, 0x02, 0x23, 0x07, 0x01}},
		{name: "bad magic", data: []byte{0xde, 0xad, 0xbe, 0xef}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := gpu.ShaderCode(testCase.data); !errors.Is(err, gpu.ErrMalformedShader) {
				t.Errorf("err = %v, want ErrMalformedShader", err)
			}
		})
	}
}
