package frame

import (
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/google/uuid"
	"testing"
)

// BenchmarkEncodeRequest measures request encoding for typical payload sizes
func BenchmarkEncodeRequest(b *testing.B) {
	requests := map[string]common.Request{
		"Ping":      common.NewPingRequest(),
		"SmallGet":  common.NewGetRequest([]byte("k")),
		"SmallSet":  common.NewSetRequest([]byte("key"), []byte("v")),
		"LargeSet":  common.NewSetRequest([]byte("key"), make([]byte, 1024)),
		"XLargeSet": common.NewSetRequest([]byte("key"), make([]byte, 1024*16)),
	}

	id := uuid.New()
	for name, req := range requests {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := EncodeRequest(req, id); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDecodeResponse measures response decoding
func BenchmarkDecodeResponse(b *testing.B) {
	frame := EncodeResponse(uuid.New(), true, make([]byte, 1024))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := DecodeResponse(frame); err != nil {
			b.Fatal(err)
		}
	}
}
