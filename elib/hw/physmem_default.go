//go:build !uio_pci_dma
// +build !uio_pci_dma

package hw

import (
	"github.com/platinasystems/e1000/elib"
)

func DmaAllocAligned(n, log2Align uint) (b []byte, id elib.Index, offset, cap uint, err error) {
	return heap.GetAligned(n, log2Align)
}
func DmaPhysAddress(a uintptr) uintptr { return a }
