// internal/harp/catalog.go
package harp

import (
	"fmt"
	"sort"
	"strings"
)

// Access is the set of message types a register accepts.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite
	AccessEvent
)

// Allows reports whether a message of the given type may target the register.
// The error flag is ignored: an error reply is still a Read or Write.
func (a Access) Allows(mt MessageType) bool {
	switch mt.Base() {
	case Read:
		return a&AccessRead != 0
	case Write:
		return a&AccessWrite != 0
	case Event:
		return a&AccessEvent != 0
	}
	return false
}

func (a Access) String() string {
	var parts []string
	if a&AccessRead != 0 {
		parts = append(parts, "read")
	}
	if a&AccessWrite != 0 {
		parts = append(parts, "write")
	}
	if a&AccessEvent != 0 {
		parts = append(parts, "event")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Descriptor describes one register slot.
type Descriptor struct {
	Address uint8
	Name    string
	Type    PayloadType
	Length  int
	Access  Access
}

// PayloadSize is the number of payload bytes a full register value occupies.
func (d Descriptor) PayloadSize() int { return d.Length * d.Type.Size() }

// WordCount is the number of 16-bit words needed to hold the payload.
// Single-byte elements take one word each.
func (d Descriptor) WordCount() int {
	size := d.Type.Size()
	if size < 2 {
		return d.Length
	}
	return d.Length * size / 2
}

func (d Descriptor) validate() error {
	if d.Length < 1 {
		return fmt.Errorf("%w: register %d length %d", ErrInvalidDescriptor, d.Address, d.Length)
	}
	if !d.Type.Valid() || d.Type.Timestamped() {
		return fmt.Errorf("%w: register %d type %s", ErrInvalidDescriptor, d.Address, d.Type)
	}
	return nil
}

// Catalog maps addresses to descriptors for one device model.
// It is immutable after construction and safe to share.
type Catalog struct {
	name   string
	whoAmI uint16
	regs   map[uint8]Descriptor
}

// NewCatalog builds a catalog from descriptors. Addresses must be unique.
func NewCatalog(name string, whoAmI uint16, descs ...Descriptor) (*Catalog, error) {
	c := &Catalog{
		name:   name,
		whoAmI: whoAmI,
		regs:   make(map[uint8]Descriptor, len(descs)),
	}
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if prev, exists := c.regs[d.Address]; exists {
			return nil, fmt.Errorf("%w: %d declared as %q and %q", ErrDuplicateAddress, d.Address, prev.Name, d.Name)
		}
		c.regs[d.Address] = d
	}
	return c, nil
}

// Merge returns a new catalog holding base plus overrides, identified as name/whoAmI.
// An override may repeat a base register only if it is identical.
func Merge(base *Catalog, name string, whoAmI uint16, overrides ...Descriptor) (*Catalog, error) {
	c := &Catalog{
		name:   name,
		whoAmI: whoAmI,
		regs:   make(map[uint8]Descriptor, base.Len()+len(overrides)),
	}
	if base != nil {
		for addr, d := range base.regs {
			c.regs[addr] = d
		}
	}

	seen := make(map[uint8]struct{}, len(overrides))
	for _, d := range overrides {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[d.Address]; dup {
			return nil, fmt.Errorf("%w: %d declared twice in %s", ErrDuplicateAddress, d.Address, name)
		}
		seen[d.Address] = struct{}{}

		if prev, exists := c.regs[d.Address]; exists && prev != d {
			return nil, fmt.Errorf("%w: %d (%q) collides with base register %q", ErrDuplicateAddress, d.Address, d.Name, prev.Name)
		}
		c.regs[d.Address] = d
	}
	return c, nil
}

// Resolve returns the descriptor registered at address.
func (c *Catalog) Resolve(address uint8) (Descriptor, error) {
	if c != nil {
		if d, ok := c.regs[address]; ok {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: address %d", ErrUnknownRegister, address)
}

// Lookup finds a register by name (case-insensitive).
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	if c == nil {
		return Descriptor{}, false
	}
	for _, d := range c.regs {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Descriptors returns every register ordered by address.
func (c *Catalog) Descriptors() []Descriptor {
	if c == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(c.regs))
	for _, d := range c.regs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (c *Catalog) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

func (c *Catalog) WhoAmI() uint16 {
	if c == nil {
		return 0
	}
	return c.whoAmI
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.regs)
}
