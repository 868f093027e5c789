// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package beacon

import (
	"crypto/aes"
	"crypto/subtle"
)

// blockSize is the AES block size in bytes.
const blockSize = 16

// rb is the constant used to conditionally XOR when shifting a subkey left,
// per NIST SP 800-38B.
const rb = 0x87

// No CMAC implementation exists anywhere in the retrieval pack (grounded in
// original_source/RTDS_CLI/RDTScrypto.cpp, which hand-rolls the same
// subkey derivation over mbedTLS's AES primitive); this is built directly
// from SP 800-38B over the standard library's crypto/aes block cipher.

// cmacSubkeys derives K1 and K2 from E_K(0^128), per SP 800-38B §6.1.
func cmacSubkeys(block cipherBlock) (k1, k2 [blockSize]byte) {
	var zero [blockSize]byte
	var l [blockSize]byte
	block.Encrypt(l[:], zero[:])

	k1 = shiftLeftXor(l)
	k2 = shiftLeftXor(k1)
	return k1, k2
}

// shiftLeftXor left-shifts in by one bit, XORing in Rb if the vacated MSB
// was set.
func shiftLeftXor(in [blockSize]byte) [blockSize]byte {
	var out [blockSize]byte
	msbSet := in[0]&0x80 != 0
	var carry byte
	for i := blockSize - 1; i >= 0; i-- {
		out[i] = (in[i] << 1) | carry
		carry = (in[i] >> 7) & 1
	}
	if msbSet {
		out[blockSize-1] ^= rb
	}
	return out
}

type cipherBlock interface {
	Encrypt(dst, src []byte)
}

// CMAC computes the full 16-byte AES-128-CMAC of data under key (which must
// be 16 bytes), per SP 800-38B: block-chain XOR-then-encrypt, with the
// final block XORed with K1 when data is a multiple of the block size
// (complete) or K2 after 0x80 00.. padding otherwise.
func CMAC(key, data []byte) ([blockSize]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return [blockSize]byte{}, err
	}
	k1, k2 := cmacSubkeys(block)

	n := (len(data) + blockSize - 1) / blockSize
	complete := len(data) > 0 && len(data)%blockSize == 0
	if n == 0 {
		n = 1
		complete = false
	}

	var x [blockSize]byte
	for i := 0; i < n-1; i++ {
		chunk := data[i*blockSize : (i+1)*blockSize]
		xorInto(&x, chunk)
		var enc [blockSize]byte
		block.Encrypt(enc[:], x[:])
		x = enc
	}

	last := make([]byte, blockSize)
	tail := data[(n-1)*blockSize:]
	copy(last, tail)
	var mBlock [blockSize]byte
	if complete {
		copy(mBlock[:], last)
		xorInto(&mBlock, k1[:])
	} else {
		last[len(tail)] = 0x80
		copy(mBlock[:], last)
		xorInto(&mBlock, k2[:])
	}
	xorInto(&x, mBlock[:])
	var mac [blockSize]byte
	block.Encrypt(mac[:], x[:])
	return mac, nil
}

func xorInto(dst *[blockSize]byte, src []byte) {
	for i := 0; i < blockSize; i++ {
		dst[i] ^= src[i]
	}
}

// VerifyTruncated constant-time compares the first MACLen bytes of the
// CMAC of data under key against want.
func VerifyTruncated(key, data []byte, want []byte) (bool, error) {
	full, err := CMAC(key, data)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(full[:len(want)], want) == 1, nil
}
