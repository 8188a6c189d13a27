package elib

import (
	"fmt"
)

func StringerWithFormat(n []string, i int, unknownFormat string) string {
	if i < len(n) && len(n[i]) > 0 {
		return n[i]
	} else {
		return fmt.Sprintf(unknownFormat, i)
	}
}

func Stringer(n []string, i int) string    { return StringerWithFormat(n, i, "%d") }
func StringerHex(n []string, i int) string { return StringerWithFormat(n, i, "0x%x") }

func FlagStringerWithFormat(n []string, x Word, unknownFormat string) (s string) {
	s = ""
	for x != 0 {
		f := FirstSet(x)
		if len(s) > 0 {
			s += ", "
		}
		i := int(MinLog2(f))
		if i < len(n) && len(n[i]) > 0 {
			s += n[i]
		} else {
			s += fmt.Sprintf(unknownFormat, i)
		}
		x ^= f
	}
	return
}

func FlagStringer(n []string, x Word) string { return FlagStringerWithFormat(n, x, "%d") }

type MemorySize uint64

func (s MemorySize) String() (v string) {
	u, c := uint64(1), rune(0)
	switch {
	case s >= 1<<40:
		u, c = 1<<40, 'T'
	case s >= 1<<30:
		u, c = 1<<30, 'G'
	case s >= 1<<20:
		u, c = 1<<20, 'M'
	case s >= 1<<10:
		u, c = 1<<10, 'K'
	}
	x := float64(s) / float64(u)
	if c == 0 {
		v = fmt.Sprintf("%d", s)
	} else {
		if x != float64(int64(x)) {
			v = fmt.Sprintf("%.2f%c", x, c)
		} else {
			v = fmt.Sprintf("%.0f%c", x, c)
		}
	}
	return
}
