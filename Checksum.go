package modbus

// crc computes a CRC-16/MODBUS cyclic redundancy check of the given bytes:
// polynomial 0xA001 (reflected 0x8005), initial value 0xFFFF. It is appended
// little-endian to RTU frames.
func crc(data []byte) uint16 {
	var crc16 uint16 = 0xffff
	for _, b := range data {
		crc16 ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc16&0x0001 > 0 {
				crc16 = (crc16 >> 1) ^ 0xA001
			} else {
				crc16 >>= 1
			}
		}
	}
	return crc16
}

// lrc computes the Modbus ASCII LRC (Longitudinal Redundancy Check): the
// two's complement of the sum of all frame bytes excluding the LRC itself.
func lrc(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}
