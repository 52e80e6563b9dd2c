package tracking

import "fmt"

// CPUCoreMask calculates the core mask by passing in the CPU core numbers as a
// slice, eg: []int{4,5,6,7}
func CPUCoreMask(cores []int) uintptr {

	var mask uintptr

	for _, core := range cores {
		mask |= 1 << core
	}

	return mask
}

// PinCores restricts the program to the given CPU cores.  An empty list leaves
// the affinity untouched
func PinCores(cores []int) error {

	if len(cores) == 0 {
		return nil
	}

	for _, core := range cores {
		if core < 0 || core >= 64 {
			return fmt.Errorf("cpu core %d out of range", core)
		}
	}

	return SetCPUAffinity(CPUCoreMask(cores))
}
