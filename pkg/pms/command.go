package pms

// Host-to-sensor command bytes. Every command is seven bytes: the two
// sync bytes, the command, a 16-bit big-endian argument and a 16-bit
// checksum over the first five bytes.
const (
	cmdChangeMode  = 0xE1 // arg 0 = passive, 1 = active
	cmdRequestRead = 0xE2 // passive mode only
	cmdWakeSleep   = 0xE4 // arg 0 = sleep, 1 = wake
)

func command(cmd byte, arg uint16) [7]byte {
	var c [7]byte
	c[0] = sync0
	c[1] = sync1
	c[2] = cmd
	c[3] = byte(arg >> 8)
	c[4] = byte(arg)

	sum := uint16(c[0]) + uint16(c[1]) + uint16(c[2]) + uint16(c[3]) + uint16(c[4])
	c[5] = byte(sum >> 8)
	c[6] = byte(sum)
	return c
}
