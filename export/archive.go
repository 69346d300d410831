package export

import (
	"archive/zip"
	"bytes"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

// buildArchive bundles chunk artifacts into one compressed zip artifact.
// Entry names and ordering match the inputs; sizes and the compression ratio
// are recorded from the finished container.
func buildArchive(filename string, parts []Artifact, now time.Time) (Artifact, ArchiveStats, error) {
	if len(parts) == 0 {
		return Artifact{}, ArchiveStats{}, NewError(KindInternal, "archive requires at least one entry", nil)
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	var uncompressed int64
	var records int
	for i := range parts {
		header := &zip.FileHeader{
			Name:     parts[i].Filename,
			Method:   zip.Deflate,
			Modified: now,
		}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			_ = zw.Close()
			return Artifact{}, ArchiveStats{}, err
		}
		if _, err := entry.Write(parts[i].Bytes); err != nil {
			_ = zw.Close()
			return Artifact{}, ArchiveStats{}, err
		}
		uncompressed += int64(len(parts[i].Bytes))
		records += parts[i].RecordCount
	}
	if err := zw.Close(); err != nil {
		return Artifact{}, ArchiveStats{}, err
	}

	data := buf.Bytes()
	if err := ValidateArtifactBytes(data); err != nil {
		return Artifact{}, ArchiveStats{}, err
	}

	stats := ArchiveStats{
		UncompressedTotal: uncompressed,
		CompressedTotal:   int64(len(data)),
	}
	if uncompressed > 0 {
		stats.Ratio = float64(stats.CompressedTotal) / float64(uncompressed)
	}

	artifact := Artifact{
		Bytes:       data,
		MIMEType:    MIMEZip,
		Filename:    filename,
		Size:        uncompressed,
		RecordCount: records,
	}
	return artifact, stats, nil
}
