package agent

import "testing"

func TestDecodeAttachment(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", nil, ""},
		{"utf-8", []byte("Hémoglobine 13.5 g/dL"), "Hémoglobine 13.5 g/dL"},
		{"utf-8 bom", []byte("\xef\xbb\xbfTSH 2.1"), "TSH 2.1"},
		{"utf-16le bom", []byte("\xff\xfeh\x00i\x00"), "hi"},
		{"windows-1252", []byte("caf\xe9 \x93ok\x94"), "café “ok”"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAttachment(tt.in)
			if err != nil {
				t.Fatalf("DecodeAttachment: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeAttachment() = %q, want %q", got, tt.want)
			}
		})
	}
}
