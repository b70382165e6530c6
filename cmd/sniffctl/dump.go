// cmd/sniffctl/dump.go
package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/tamzrod/harp-sniffdetector/internal/capture"
	"github.com/tamzrod/harp-sniffdetector/internal/harp"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
)

// runDump prints every record of a capture file, decoding frames
// against the SniffDetector catalog.
func runDump(w io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("dump: want <capture.cbor>")
	}

	r, err := capture.OpenReader(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	return dumpRecords(w, r, sniffdetector.Catalog())
}

func dumpRecords(w io.Writer, r *capture.Reader, cat *harp.Catalog) error {
	for n := 0; ; n++ {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			fmt.Fprintf(w, "%d records\n", n)
			return nil
		}
		if err != nil {
			return fmt.Errorf("dump: record %d: %w", n, err)
		}

		line := fmt.Sprintf("% x", rec.Frame)
		if m, err := harp.Parse(cat, rec.Frame); err == nil {
			line = m.String()
			if d, err := cat.Resolve(m.Address); err == nil && len(m.Payload) > 0 {
				if v, err := formatValue(d, m); err == nil {
					line = fmt.Sprintf("%s %s = %s", m.Type, d.Name, v)
				}
			}
		}

		fmt.Fprintf(w, "%s %-3s %s %s\n",
			rec.Time.Format("15:04:05.000000"), rec.Direction, shortSession(rec.Session), line)
	}
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
