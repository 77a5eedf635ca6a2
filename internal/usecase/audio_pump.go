package usecase

import (
	"errors"
	"io"
	"os"
)

// pumpAudioChunks drains the device for its whole lifetime so the pipe never
// backs up, handing every chunk to sink. It returns the terminal read error,
// or nil on a clean end of stream.
func pumpAudioChunks(audio io.Reader, chunkSize int, sink func([]byte), done chan<- error) {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			sink(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				done <- nil
			} else {
				done <- err
			}
			close(done)
			return
		}
	}
}
