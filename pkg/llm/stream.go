package llm

import (
	"context"
	"io"
)

// PumpBody reads a streaming response body into raw fragments until EOF,
// a read error, or ctx cancellation. Read boundaries are whatever the
// network delivered; records split across reads are expected.
func PumpBody(ctx context.Context, body io.ReadCloser) <-chan Fragment {
	out := make(chan Fragment, 8)

	go func() {
		defer close(out)
		defer body.Close()

		buf := make([]byte, 4096)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case out <- Fragment{Data: data}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					select {
					case out <- Fragment{Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()

	return out
}
