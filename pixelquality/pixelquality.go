// Package pixelquality extracts per-test boolean masks from Landsat pixel
// quality (PQ) bit arrays. Each 16 bit PQ value packs the outcome of the
// quality tests run over a pixel; a set bit means the pixel passed that
// test (saturation free, contiguous, cloud free and so on).
package pixelquality

import "fmt"

// Flag identifies one pixel quality test. The flag value is its bit
// position within the PQ word.
type Flag uint8

const (
	Saturation1 Flag = iota
	Saturation2
	Saturation3
	Saturation4
	Saturation5
	Saturation61
	Saturation62
	Saturation7
	Contiguity
	LandSea
	ACCA
	Fmask
	CloudShadow1
	CloudShadow2
	Empty1
	Empty2

	// NumFlags is the number of tests packed into a PQ word.
	NumFlags = 16
)

var flagNames = [NumFlags]string{
	"Saturation_1",
	"Saturation_2",
	"Saturation_3",
	"Saturation_4",
	"Saturation_5",
	"Saturation_61",
	"Saturation_62",
	"Saturation_7",
	"Contiguity",
	"Land_Sea",
	"ACCA",
	"Fmask",
	"CloudShadow_1",
	"CloudShadow_2",
	"Empty_1",
	"Empty_2",
}

func (f Flag) String() string {
	if int(f) < NumFlags {
		return flagNames[f]
	}
	return fmt.Sprintf("Flag(%d)", uint8(f))
}

// Bit returns the flag's bit position.
func (f Flag) Bit() uint {
	return uint(f)
}

// Value returns the flag's bit mask within a PQ word.
func (f Flag) Value() uint16 {
	return 1 << uint(f)
}

// AllFlags returns every defined flag in bit order.
func AllFlags() []Flag {
	flags := make([]Flag, NumFlags)
	for i := range flags {
		flags[i] = Flag(i)
	}
	return flags
}

// Options selects and shapes the extraction.
type Options struct {
	// Flags to extract, in the given order. Nil selects all flags in bit
	// order.
	Flags []Flag
	// Invert marks flags whose extracted mask is negated, useful when
	// investigating the flagged phenomenon itself (e.g. only cloud).
	Invert map[Flag]bool
	// CheckZero treats a raw PQ value of zero as untested and forces the
	// mask true there.
	CheckZero bool
}

func (o *Options) flags() ([]Flag, error) {
	if o == nil || o.Flags == nil {
		return AllFlags(), nil
	}
	for _, f := range o.Flags {
		if int(f) >= NumFlags {
			return nil, fmt.Errorf("pixelquality: unknown flag %d", uint8(f))
		}
	}
	return o.Flags, nil
}

func (o *Options) inverted(f Flag) bool {
	return o != nil && o.Invert[f]
}

// ExtractFlags extracts one boolean mask per selected flag from a flat PQ
// plane. A mask element is true where the corresponding test passed (bit
// set), or the negation for inverted flags.
func ExtractFlags(plane []uint16, opts *Options) ([][]bool, error) {
	flags, err := opts.flags()
	if err != nil {
		return nil, err
	}
	masks := make([][]bool, len(flags))
	for i, f := range flags {
		mask := make([]bool, len(plane))
		value := f.Value()
		bit := f.Bit()
		inv := opts.inverted(f)
		for j, v := range plane {
			set := (v&value)>>bit == 1
			if inv {
				set = !set
			}
			mask[j] = set
		}
		if opts != nil && opts.CheckZero {
			for j, v := range plane {
				if v == 0 {
					mask[j] = true
				}
			}
		}
		masks[i] = mask
	}
	return masks, nil
}

// CombinedMask ANDs the selected flag masks of a flat PQ plane into a
// single mask: true means the pixel passed every selected test.
func CombinedMask(plane []uint16, opts *Options) ([]bool, error) {
	flags, err := opts.flags()
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(plane))
	for i := range mask {
		mask[i] = true
	}
	for _, f := range flags {
		value := f.Value()
		bit := f.Bit()
		inv := opts.inverted(f)
		for j, v := range plane {
			set := (v&value)>>bit == 1
			if inv {
				set = !set
			}
			mask[j] = mask[j] && set
		}
	}
	if opts != nil && opts.CheckZero {
		for j, v := range plane {
			if v == 0 {
				mask[j] = true
			}
		}
	}
	return mask, nil
}
