// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/harp-sniffdetector/internal/poller"
)

// areaHoldingRegisters is the only memory area Harp words are mirrored into.
const areaHoldingRegisters byte = 3

// endpointClient is the exact contract the writer uses.
// IMPORTANT: There must be NO other version of this interface anywhere.
type endpointClient interface {
	WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error
}

type writerImpl struct {
	plan    Plan
	clients map[string]endpointClient
}

func New(plan Plan, clients map[string]endpointClient) Writer {
	return &writerImpl{
		plan:    plan,
		clients: clients,
	}
}

// Write mirrors every block of a successful poll into every target memory.
// A failed poll writes nothing; its outcome reaches targets through the status block.
func (w *writerImpl) Write(res poller.PollResult) error {
	if res.Err != nil {
		return nil
	}

	var errs []string

	for _, tgt := range w.plan.Targets {
		cli := w.clients[tgt.Endpoint]
		if cli == nil {
			errs = append(errs, fmt.Sprintf(
				"writer: missing client for endpoint %s",
				tgt.Endpoint,
			))
			continue
		}

		for _, mem := range tgt.Memories {
			for _, b := range res.Blocks {
				if len(b.Words) == 0 {
					continue
				}
				dstAddr := mem.Offset + b.Address

				if err := cli.WriteRegisters(areaHoldingRegisters, tgt.UnitID, dstAddr, b.Words); err != nil {
					errs = append(errs, fmt.Sprintf(
						"writer: ep=%s unit=%d mem=%d reg=%s addr=%d err=%v",
						tgt.Endpoint, tgt.UnitID, mem.MemoryID, b.Name, dstAddr, err,
					))
				}
			}
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}

	return nil
}
