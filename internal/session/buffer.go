package session

import "github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"

// chunkBuffer accumulates captured audio for one session. It is guarded by the
// controller mutex.
type chunkBuffer struct {
	chunks [][]byte
	size   int
}

func (b *chunkBuffer) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk)
}

// snapshot copies the buffered audio so analysis can run without the lock.
func (b *chunkBuffer) snapshot(sampleRate int, channels int) clip.Clip {
	return clip.Concat(b.chunks, sampleRate, channels)
}

func (b *chunkBuffer) clear() {
	b.chunks = nil
	b.size = 0
}

func (b *chunkBuffer) len() int {
	return b.size
}
