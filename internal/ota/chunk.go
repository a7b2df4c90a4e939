package ota

// ChunkSize is the number of firmware bytes carried by one OTA part.
// The gateway splits images with the same constant, so it must not change
// independently of the gateway firmware.
const ChunkSize = 1024

// ChunkCount returns the number of parts needed to carry sizeBytes
func ChunkCount(sizeBytes int64) int {
	if sizeBytes <= 0 {
		return 0
	}
	return int((sizeBytes + ChunkSize - 1) / ChunkSize)
}
