package ocr

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Tesseract variable selecting SIMD implementation of the dot product used by LSTM recognizer
const tesseractDotProductVariable = "dotproduct"

// Returns the fastest tesseract dot product kernel supported by this CPU. False if only generic code can run.
func AcceleratorKernel() (string, bool) {
	switch runtime.GOARCH {
	case "amd64", "386":
		switch {
		case cpu.X86.HasAVX2 && cpu.X86.HasFMA:
			return "fma", true
		case cpu.X86.HasAVX2:
			return "avx2", true
		case cpu.X86.HasAVX:
			return "avx", true
		case cpu.X86.HasSSE41:
			return "sse", true
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return "neon", true
		}
	}
	return "", false
}
