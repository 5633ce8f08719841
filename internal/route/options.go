package route

import (
	"fmt"
	"strings"
)

// Options is the route option bitmask. One communication mode and one
// packing mode apply at a time.
type Options int

const (
	OptNone Options = 0

	// OptAsync posts every send before the first blocking receive.
	OptAsync Options = 0x1
	// OptSync exchanges pairwise per round, lower PET sending first.
	OptSync Options = 0x2

	// OptPackPET sends one message per peer holding every packet.
	OptPackPET Options = 0x4
	// OptPackXP sends one message per transfer packet.
	OptPackXP Options = 0x8
	// OptNoPack sends packets straight from buffer slices when the
	// transport is vectored, and falls back to OptPackXP otherwise.
	OptNoPack Options = 0x10
	// OptVector gathers and scatters through per-element index vectors,
	// one message per peer.
	OptVector Options = 0x20

	OptDefault = OptAsync | OptPackXP

	commMask = OptAsync | OptSync
	packMask = OptPackPET | OptPackXP | OptNoPack | OptVector
)

var optionNames = []struct {
	opt  Options
	name string
}{
	{OptAsync, "ASYNC"},
	{OptSync, "SYNC"},
	{OptPackPET, "PACK_PET"},
	{OptPackXP, "PACK_XP"},
	{OptNoPack, "NOPACK"},
	{OptVector, "VECTOR"},
}

// Normalize fills in defaults for unset groups and rejects conflicting or
// unknown bits.
func (o Options) Normalize() (Options, error) {
	if o&^(commMask|packMask) != 0 {
		return 0, fmt.Errorf("unknown option bits %#x", int(o&^(commMask|packMask)))
	}
	if o&commMask == commMask {
		return 0, fmt.Errorf("ASYNC and SYNC are exclusive")
	}
	if p := o & packMask; p&(p-1) != 0 {
		return 0, fmt.Errorf("packing modes %s are exclusive", p)
	}
	if o&commMask == 0 {
		o |= OptAsync
	}
	if o&packMask == 0 {
		o |= OptPackXP
	}
	return o, nil
}

// Sync reports whether the blocking pairwise mode is selected.
func (o Options) Sync() bool {
	return o&OptSync != 0
}

// PerPeer reports whether the packing mode sends one message per peer.
func (o Options) PerPeer() bool {
	return o&(OptPackPET|OptVector) != 0
}

func (o Options) String() string {
	if o == OptNone {
		return "NONE"
	}
	var parts []string
	for _, n := range optionNames {
		if o&n.opt != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := o &^ (commMask | packMask); rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", int(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseOptions parses a comma- or pipe-separated option list such as
// "sync,pack_pet". The empty string yields OptDefault.
func ParseOptions(s string) (Options, error) {
	var o Options
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' || r == ' ' }) {
		name := strings.ToUpper(strings.TrimSpace(f))
		if name == "DEFAULT" {
			o |= OptDefault
			continue
		}
		found := false
		for _, n := range optionNames {
			if n.name == name {
				o |= n.opt
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown route option %q", f)
		}
	}
	return o.Normalize()
}
