package hashio

import (
	"bytes"
	"crypto/md5" //nolint
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
)

const size = 512

// ReadAll reads in blocks by buf size and hashes
func ReadAll(r io.Reader, hasher hash.Hash) ([]byte, error) {
	buf := make([]byte, size)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}

		if err != nil {
			if err == io.EOF {
				break
			}

			return nil, fmt.Errorf("read: %w", err)
		}
	}

	return hasher.Sum(nil), nil
}

// Sum hashes an in-memory payload with a fresh hasher
func Sum(b []byte, hasher func() hash.Hash) ([]byte, error) {
	return ReadAll(bytes.NewReader(b), hasher())
}

// Equal reports whether two digests match. Empty digests never match
func Equal(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	return bytes.Equal(a, b)
}

func MD5() func() hash.Hash {
	return func() hash.Hash {
		return md5.New()
	}
}

func SHA1() func() hash.Hash {
	return func() hash.Hash {
		return sha1.New()
	}
}
