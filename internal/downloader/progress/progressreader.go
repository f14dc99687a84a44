package progress

import "io"

// milestonePercent is how often, in percent of the total, progress is reported
// regardless of the byte interval.
const milestonePercent = 5

// Reader wraps an io.Reader and reports progress via a callback.
type Reader struct {
	reader         io.Reader
	total          int64
	onProgress     func(written int64, total int64)
	totalRead      int64
	sinceReport    int64
	reportInterval int64
}

// NewReader reports every interval bytes and every 5% of total when total is known.
func NewReader(r io.Reader, total int64, interval int64, cb func(written int64, total int64)) *Reader {
	return &Reader{
		reader:         r,
		total:          total,
		onProgress:     cb,
		reportInterval: interval,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		before := pr.totalRead
		pr.totalRead += int64(n)
		pr.sinceReport += int64(n)

		if pr.shouldReport(before) {
			pr.onProgress(pr.totalRead, pr.total)
			pr.sinceReport = 0
		}
	}

	return n, err
}

// Written returns the number of bytes read so far.
func (pr *Reader) Written() int64 {
	return pr.totalRead
}

func (pr *Reader) shouldReport(before int64) bool {
	if pr.onProgress == nil {
		return false
	}

	if pr.reportInterval > 0 && pr.sinceReport >= pr.reportInterval {
		return true
	}

	if pr.total <= 0 {
		return false
	}

	return pr.totalRead*100/pr.total/milestonePercent > before*100/pr.total/milestonePercent
}
