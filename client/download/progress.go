package download

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// countingWriter tracks how many bytes passed through to the underlying
// writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}

// progressWriter logs throughput at most once a second while bytes
// stream through. The body size isn't known when the sink is attached,
// so it reports transferred bytes and rate rather than a percentage.
type progressWriter struct {
	w           io.Writer
	logger      *slog.Logger
	transferred int64
	startTime   time.Time
	lastLog     time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.transferred += int64(n)

	if time.Since(p.lastLog) >= time.Second {
		p.log()
		p.lastLog = time.Now()
	}

	return n, err
}

func (p *progressWriter) log() {
	elapsed := time.Since(p.startTime).Seconds()

	var mbps float64
	if elapsed > 0 {
		mbps = float64(p.transferred) / (1024 * 1024) / elapsed
	}

	p.logger.Info("download progress",
		"transferred_mb", fmt.Sprintf("%.2f", float64(p.transferred)/(1024*1024)),
		"elapsed", fmt.Sprintf("%.1fs", elapsed),
		"mbps", fmt.Sprintf("%.2f", mbps),
	)
}
