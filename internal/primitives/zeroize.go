package primitives

// Zero overwrites buf in place. Used to scrub cold-share key material,
// derived scalars, and vault passphrase-derived keys from memory as soon
// as they are no longer needed, per spec §4.4/§4.6's handling of secret
// material.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// ZeroScalar sets s to zero in place. It does not touch any 32-byte
// encoding of s held elsewhere; such buffers are cleared with Zero.
func ZeroScalar(s *Scalar) {
	s.Zero()
}
