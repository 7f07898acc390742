package gocfb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCodepage(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		codepage uint32
		want     string
		wantOk   bool
	}{
		{
			name:     "windows 1252",
			data:     []byte{'G', 0xF6, 't', 'z'},
			codepage: 1252,
			want:     "Götz",
			wantOk:   true,
		},
		{
			name:     "stops at the null terminator",
			data:     []byte{'a', 'b', 0, 'c'},
			codepage: 1252,
			want:     "ab",
			wantOk:   true,
		},
		{
			name:     "shift jis",
			data:     []byte{0x83, 0x65, 0x83, 0x58, 0x83, 0x67},
			codepage: 932,
			want:     "テスト",
			wantOk:   true,
		},
		{
			name:     "utf-8",
			data:     []byte("héllo"),
			codepage: 65001,
			want:     "héllo",
			wantOk:   true,
		},
		{
			name:     "utf-16 little endian",
			data:     []byte{'H', 0, 'i', 0, 0, 0},
			codepage: 1200,
			want:     "Hi",
			wantOk:   true,
		},
		{
			name:     "empty",
			data:     nil,
			codepage: 1252,
			want:     "",
			wantOk:   true,
		},
		{
			name:     "unsupported codepage",
			data:     []byte("whatever"),
			codepage: 12345,
			want:     "",
			wantOk:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeCodepage(tt.data, tt.codepage)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodepageEncoding(t *testing.T) {
	supported := []uint32{
		437, 850, 866, 874, 932, 936, 949, 950,
		1200, 1201, 1250, 1251, 1252, 1253, 1254, 1255, 1256, 1257, 1258,
		10000, 20932, 28592, 28595, 28605, 54936, 65001,
	}
	for _, codepage := range supported {
		assert.NotNil(t, codepageEncoding(codepage), "codepage %d", codepage)
	}

	assert.Nil(t, codepageEncoding(0))
	assert.Nil(t, codepageEncoding(42))
}
