package secure

import (
	"io"
	"sync"

	"github.com/awnumar/memguard"
)

// SecureBuffer holds one secret value in a memguard enclave.
type SecureBuffer struct {
	enclave *memguard.Enclave
	size    int

	mu        sync.RWMutex
	destroyed bool
}

// NewSecureBuffer seals data into an enclave. memguard wipes data once it is
// copied, so callers must not reuse the slice.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	size := len(data)
	// memguard returns a nil enclave for empty input; an empty value is
	// represented by the nil enclave.
	var enclave *memguard.Enclave
	if size > 0 {
		enclave = memguard.NewEnclave(data)
	}
	return &SecureBuffer{enclave: enclave, size: size}, nil
}

// FromString seals a copy of s.
func FromString(s string) (*SecureBuffer, error) {
	return NewSecureBuffer([]byte(s))
}

// Size returns the length of the sealed value in bytes.
func (s *SecureBuffer) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return 0
	}
	return s.size
}

// Open decrypts the value into a locked buffer. The caller must Destroy the
// returned buffer.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed || s.enclave == nil {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return s.enclave.Open()
}

// WriteTo writes the plaintext to w and wipes the temporary copy.
func (s *SecureBuffer) WriteTo(w io.Writer) (int64, error) {
	locked, err := s.Open()
	if err != nil {
		return 0, err
	}
	defer locked.Destroy()

	n, err := w.Write(locked.Bytes())
	return int64(n), err
}

// Destroy drops the enclave. It is idempotent; Open afterwards yields an
// empty buffer.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.enclave = nil
	s.size = 0
	s.destroyed = true
}

// Purge wipes every memguard allocation in the process. main defers it.
func Purge() {
	memguard.Purge()
}
